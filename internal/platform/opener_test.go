package platform

import (
	"errors"
	"os/exec"
	"testing"

	"go.uber.org/zap"
)

func fakeOpener(goos string, installed map[string]bool, start commandStarter) *CommandOpener {
	return &CommandOpener{
		goos:  goos,
		start: start,
		lookPath: func(name string) (string, error) {
			if installed[name] {
				return "/usr/bin/" + name, nil
			}
			return "", exec.ErrNotFound
		},
		logger: zap.NewNop(),
	}
}

func TestOpenURLUsesFirstInstalledCommand(t *testing.T) {
	var started []string
	o := fakeOpener("linux", map[string]bool{"gio": true, "sensible-browser": true}, func(name string, args ...string) error {
		started = append(started, name)
		return nil
	})

	if err := o.OpenURL("https://app.example.com/"); err != nil {
		t.Fatalf("OpenURL() error = %v", err)
	}
	if len(started) != 1 || started[0] != "gio" {
		t.Errorf("started = %v, want [gio]", started)
	}
}

func TestOpenURLFallsThroughFailures(t *testing.T) {
	var started []string
	o := fakeOpener("linux", map[string]bool{"xdg-open": true, "gio": true}, func(name string, args ...string) error {
		started = append(started, name)
		if name == "xdg-open" {
			return errors.New("exit 3")
		}
		return nil
	})

	if err := o.OpenURL("https://app.example.com/"); err != nil {
		t.Fatalf("OpenURL() error = %v", err)
	}
	if len(started) != 2 {
		t.Errorf("started = %v, want xdg-open then gio", started)
	}
}

func TestOpenURLUnsupported(t *testing.T) {
	o := fakeOpener("linux", nil, func(string, ...string) error {
		t.Fatal("nothing should be started")
		return nil
	})
	if err := o.OpenURL("https://x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}

	o = fakeOpener("plan9", map[string]bool{"open": true}, nil)
	if err := o.OpenURL("https://x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unknown OS error = %v, want ErrUnsupported", err)
	}
}

func TestOpenURLAllFail(t *testing.T) {
	o := fakeOpener("darwin", map[string]bool{"open": true}, func(string, ...string) error {
		return errors.New("denied")
	})
	err := o.OpenURL("https://x")
	if err == nil || errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want joined start failure", err)
	}
}

func TestOpenCommandsPassURL(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows"} {
		cmds := openCommandsForOS(goos, "https://u")
		if len(cmds) == 0 {
			t.Fatalf("%s: no commands", goos)
		}
		args := cmds[0].args
		if args[len(args)-1] != "https://u" {
			t.Errorf("%s: url not last arg: %v", goos, args)
		}
	}
}
