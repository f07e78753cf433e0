package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Command types sent by the foreground application.
const (
	CmdSetUser = "SET_USER"
	CmdSignOut = "SIGN_OUT"
	CmdEnable  = "ENABLE"
	CmdDisable = "DISABLE"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingUser    = errors.New("SET_USER requires userId")
)

// Command is one message on the inbound command channel.
type Command struct {
	Type   string
	UserID string
	Token  string
}

// ParseCommand decodes {type, userId?, token?}. Numeric user ids are accepted
// and formatted without exponent.
func ParseCommand(m map[string]any) (Command, error) {
	typ, _ := m["type"].(string)
	cmd := Command{Type: typ}

	switch typ {
	case CmdSetUser:
		cmd.UserID = stringField(m["userId"])
		if cmd.UserID == "" {
			return Command{}, ErrMissingUser
		}
		cmd.Token = stringField(m["token"])
	case CmdSignOut, CmdEnable, CmdDisable:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, typ)
	}
	return cmd, nil
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// Handle applies cmd to the registry.
func (r *Registry) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CmdSetUser:
		return r.SetUser(ctx, cmd.UserID, cmd.Token)
	case CmdSignOut:
		r.SignOut()
		return nil
	case CmdEnable:
		return r.Enable(ctx)
	case CmdDisable:
		r.Disable()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
