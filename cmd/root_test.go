// file: cmd/root_test.go
// version: 1.0.0
// guid: ffcb3085-0d05-47e1-a45e-dea421b95cd5

package cmd

import "testing"

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"serve":    false,
		"user":     false,
		"playlist": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestAdminSubcommands(t *testing.T) {
	names := func(cmds ...string) map[string]bool {
		m := make(map[string]bool)
		for _, c := range cmds {
			m[c] = false
		}
		return m
	}

	userWant := names("add", "remove")
	for _, c := range userCmd.Commands() {
		if _, ok := userWant[c.Name()]; ok {
			userWant[c.Name()] = true
		}
	}
	for name, found := range userWant {
		if !found {
			t.Errorf("user subcommand %s not registered", name)
		}
	}

	playlistWant := names("add", "remove", "list")
	for _, c := range playlistCmd.Commands() {
		if _, ok := playlistWant[c.Name()]; ok {
			playlistWant[c.Name()] = true
		}
	}
	for name, found := range playlistWant {
		if !found {
			t.Errorf("playlist subcommand %s not registered", name)
		}
	}
}
