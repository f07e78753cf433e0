package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupported is returned when no URL opener exists on this system.
var ErrUnsupported = errors.New("opening windows is not supported on this system")

// Opener opens the application in a new window.
type Opener interface {
	OpenURL(url string) error
}

type commandSpec struct {
	name string
	args []string
}

type commandStarter func(name string, args ...string) error

type lookPathFunc func(name string) (string, error)

// CommandOpener tries each known opener command for the OS in order and
// starts the first one that exists, without waiting for it.
type CommandOpener struct {
	goos     string
	start    commandStarter
	lookPath lookPathFunc
	logger   *zap.Logger
}

// NewOpener returns an opener for the running OS.
func NewOpener(logger *zap.Logger) *CommandOpener {
	return &CommandOpener{
		goos:     runtime.GOOS,
		start:    startCommandDetached,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// OpenURL launches url. It returns ErrUnsupported when no opener command is
// installed, and the joined start errors when every candidate failed.
func (o *CommandOpener) OpenURL(url string) error {
	commands := openCommandsForOS(o.goos, url)

	var errs []error
	tried := 0
	for _, c := range commands {
		if _, err := o.lookPath(c.name); err != nil {
			continue
		}
		tried++
		if err := o.start(c.name, c.args...); err != nil {
			o.logger.Debug("open command failed", zap.String("command", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		o.logger.Info("opened application window", zap.String("command", c.name), zap.String("url", url))
		return nil
	}
	if tried == 0 {
		return ErrUnsupported
	}
	return errors.Join(errs...)
}

func openCommandsForOS(goos, url string) []commandSpec {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "linux", "freebsd", "openbsd", "netbsd":
		return []commandSpec{
			{name: "xdg-open", args: []string{url}},
			{name: "gio", args: []string{"open", url}},
			{name: "sensible-browser", args: []string{url}},
		}
	case "darwin":
		return []commandSpec{{name: "open", args: []string{url}}}
	case "windows":
		return []commandSpec{{name: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}}}
	default:
		return nil
	}
}

func startCommandDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
