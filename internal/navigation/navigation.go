package navigation

import (
	"strconv"
	"sync"
)

// Route targets understood by the client.
const (
	Home            = "/"
	Login           = "/login"
	Register        = "/register"
	RegisterSuccess = "/register/success"
	Profile         = "/profile"
	VIP             = "/profile/vip"
	History         = "/profile/history"
)

// Video returns the detail route for a catalog entry.
func Video(id int64) string {
	return "/video/" + strconv.FormatInt(id, 10)
}

// Navigator moves the viewer to another view.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) { f(target) }

// Recorder is a Navigator that remembers every target it was sent to.
type Recorder struct {
	mu      sync.Mutex
	targets []string
}

// Navigate records target.
func (r *Recorder) Navigate(target string) {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()
}

// Targets returns a copy of the recorded targets in order.
func (r *Recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.targets))
	copy(out, r.targets)
	return out
}

// Last returns the most recent target, or "" when nothing was recorded.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[len(r.targets)-1]
}

// Discard is a Navigator that ignores every target.
var Discard Navigator = NavigatorFunc(func(string) {})
