// Package firmware talks to the link-management co-processor: the serialized
// command channel with its timeout and recovery policy, and the configuration,
// capability and idle-message helpers layered on it.
package firmware

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a host command understood by the co-processor.
type Kind uint8

const (
	KindLoadConfig     Kind = 0x01
	KindReadConfig     Kind = 0x02
	KindChangePhyState Kind = 0x03
	KindSendIdle       Kind = 0x04
	KindMisc           Kind = 0x05
	KindReadIdle       Kind = 0x06
	KindReadLinkCSR    Kind = 0x07
	KindWriteLinkCSR   Kind = 0x08
	KindInterfaceTest  Kind = 0xff
)

var kindNames = map[Kind]string{
	KindLoadConfig:     "load config",
	KindReadConfig:     "read config",
	KindChangePhyState: "change phy state",
	KindSendIdle:       "send idle",
	KindMisc:           "misc",
	KindReadIdle:       "read idle",
	KindReadLinkCSR:    "read link csr",
	KindWriteLinkCSR:   "write link csr",
	KindInterfaceTest:  "interface test",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind 0x%02x", uint8(k))
}

// ReturnCode is the completion code reported with a finished command.
type ReturnCode uint8

const (
	RetSuccess         ReturnCode = 0x02
	RetFailed          ReturnCode = 0x03
	RetInvalidArgs     ReturnCode = 0x04
	RetNotSupported    ReturnCode = 0x05
	RetFlowControlBusy ReturnCode = 0x06
)

func (r ReturnCode) String() string {
	switch r {
	case RetSuccess:
		return "success"
	case RetFailed:
		return "failed"
	case RetInvalidArgs:
		return "invalid args"
	case RetNotSupported:
		return "not supported"
	case RetFlowControlBusy:
		return "flow control busy"
	}
	return fmt.Sprintf("code 0x%02x", uint8(r))
}

// Command is one request/response exchange. It lives only for the
// duration of a channel call.
type Command struct {
	Kind Kind
	In   uint64 // request data; 48 bits reach the co-processor
	Ext  uint64 // extension word, KindWriteLinkCSR only
	Out  uint64
	Code ReturnCode
}

// Hardware is the raw command primitive of the co-processor plus its reset
// control. Do returns ErrNoCompletion when the completion bit is not seen
// within timeout.
type Hardware interface {
	Do(cmd *Command, timeout time.Duration) error
	Halt() error
	Release() error
	Ready() (bool, error)
}

// ErrNoCompletion is returned by Hardware.Do on a timed out command.
var ErrNoCompletion = errors.New("firmware: command not completed")

var (
	ErrChannelTimeout = errors.New("firmware: channel timeout")
	ErrChannelDead    = errors.New("firmware: channel dead")
	ErrShutDown       = errors.New("firmware: channel shut down")
	ErrBusy           = errors.New("firmware: flow control busy")
)

// CommandError reports a completed command with a non-success code.
type CommandError struct {
	Kind Kind
	Code ReturnCode
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("firmware: %s returned %s", e.Kind, e.Code)
}

// IsBusy reports whether err is a flow-control busy completion.
func IsBusy(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Code == RetFlowControlBusy
}
