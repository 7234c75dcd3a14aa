// Package rates implements fixed tick windows used to throttle noisy instants.
package rates

// Window admits at most Max events per Window ticks.
type Window struct {
	StartTick uint64
	Count     int
	Window    uint64
	Max       int
}

// Allow counts one event at nowTick. When the window is full it reports the
// ticks left until it resets. A zero window or non-positive max admits everything.
func (w *Window) Allow(nowTick uint64) (ok bool, cooldownTicks uint64) {
	if w.Window == 0 || w.Max <= 0 {
		return true, 0
	}
	if nowTick < w.StartTick || nowTick-w.StartTick >= w.Window {
		w.StartTick = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= w.Max {
		return true, 0
	}
	return false, (w.StartTick + w.Window) - nowTick
}

// Limiter keeps one window per action kind.
type Limiter struct {
	windows map[string]*Window
}

func (l *Limiter) Allow(kind string, nowTick, window uint64, max int) (bool, uint64) {
	if l.windows == nil {
		l.windows = map[string]*Window{}
	}
	w, ok := l.windows[kind]
	if !ok {
		w = &Window{StartTick: nowTick}
		l.windows[kind] = w
	}
	w.Window = window
	w.Max = max
	return w.Allow(nowTick)
}
