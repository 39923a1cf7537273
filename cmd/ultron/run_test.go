package main

import "testing"

func TestTaskFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"build a landing page"}, "build a landing page"},
		{[]string{"build", "a", "landing", "page"}, "build a landing page"},
		{[]string{"  make a game  "}, "make a game"},
	}

	for _, tt := range tests {
		if got := taskFromArgs(tt.args); got != tt.want {
			t.Errorf("taskFromArgs(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
