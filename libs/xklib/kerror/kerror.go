package kerror

import (
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

type Keypair struct {
	K string
	V interface{}
}

// Kerror is the structured error used across the planner.
// Type is a stable CamelCase identifier (for exp. "InvalidSnapshot"), Msg is for humans.
type Kerror struct {
	Type      string
	Msg       string
	Details   []Keypair // slice: keep insertion order
	Stack     string    // optional, normally only the inner most Kerror carries a stack
	CausedBy  error     // optional
	ErrorCode ErrorCode // default EC_UNKNOWN
}

func Create(errType string, msg string) *Kerror {
	return &Kerror{
		Stack:     GetCallStack(1),
		Type:      errType,
		Msg:       msg,
		ErrorCode: EC_UNKNOWN,
	}
}

// Wrap attaches err as the cause. Stack trace is expensive, only ask for it when really needed.
func Wrap(err error, errType, msg string, needStack bool) *Kerror {
	ke := &Kerror{
		Type:      errType,
		Msg:       msg,
		CausedBy:  err,
		ErrorCode: EC_UNKNOWN,
	}
	if Retryable(err) {
		ke.ErrorCode = EC_RETRYABLE
	}
	if needStack {
		if _, ok := err.(*Kerror); !ok {
			ke.Stack = GetCallStack(1)
		}
	}
	return ke
}

func (ke *Kerror) Error() string {
	return ke.ShortString()
}

func (ke *Kerror) String() string {
	return ke.FullString()
}

func (ke *Kerror) With(key string, val interface{}) *Kerror {
	ke.Details = append(ke.Details, Keypair{K: key, V: val})
	return ke
}

func (ke *Kerror) WithErrorCode(code ErrorCode) *Kerror {
	ke.ErrorCode = code
	return ke
}

func (ke *Kerror) WithoutStack() *Kerror {
	ke.Stack = ""
	return ke
}

// Unwrap makes Kerror work with errors.Is() / errors.As()
func (ke *Kerror) Unwrap() error {
	return ke.CausedBy
}

func (ke *Kerror) GetType() string {
	return ke.Type
}

// GetDetail returns the first detail value with the given key, or nil.
func (ke *Kerror) GetDetail(key string) interface{} {
	for _, item := range ke.Details {
		if item.K == key {
			return item.V
		}
	}
	return nil
}

func (ke *Kerror) ShortString() string {
	var b strings.Builder
	ke.writeTo(&b, false, false)
	return b.String()
}

func (ke *Kerror) FullString() string {
	var b strings.Builder
	ke.writeTo(&b, true, true)
	return b.String()
}

func (ke *Kerror) CausedByString() string {
	var b strings.Builder
	ke.writeCause(&b, false, true)
	return b.String()
}

func (ke *Kerror) writeTo(b *strings.Builder, withStack, withCause bool) {
	fmt.Fprintf(b, "%s: %s", ke.Type, ke.Msg)
	for _, item := range ke.Details {
		fmt.Fprintf(b, ", %s=%v", item.K, formatVal(item.V))
	}
	if withStack && ke.Stack != "" {
		fmt.Fprintf(b, ", stack=%s", ke.Stack)
	}
	if withCause && ke.CausedBy != nil {
		b.WriteString(";\n Caused by: ")
		ke.writeCause(b, withStack, withCause)
		b.WriteString("\n")
	}
}

func (ke *Kerror) writeCause(b *strings.Builder, withStack, withCause bool) {
	if ke.CausedBy == nil {
		return
	}
	if cause, ok := ke.CausedBy.(*Kerror); ok {
		cause.writeTo(b, withStack, withCause)
	} else {
		b.WriteString(ke.CausedBy.Error())
	}
}

func (ke *Kerror) GetHttpErrorCode() int {
	return ke.ErrorCode.ToHttpErrorCode()
}

func formatVal(val interface{}) interface{} {
	if bytes, ok := val.([]byte); ok {
		return hex.EncodeToString(bytes)
	}
	return val
}

func GetCallStack(removeTop int) string {
	stack := string(debug.Stack())
	// skip the goroutine header and the frames of debug.Stack/GetCallStack/caller
	split := strings.SplitAfterN(stack, "\n", 6+2*removeTop)
	return split[len(split)-1]
}

// IsType reports whether err (or anything in its cause chain) is a *Kerror of the given type.
func IsType(err error, errType string) bool {
	for err != nil {
		var ke *Kerror
		if !errors.As(err, &ke) {
			return false
		}
		if ke.Type == errType {
			return true
		}
		err = ke.CausedBy
	}
	return false
}

// ******************** Retryable ********************
type retryable interface {
	Retryable() bool
}

func (ke *Kerror) Retryable() bool {
	return ke.ErrorCode == EC_RETRYABLE
}

// Retryable: verify a given error (not necessarily a Kerror) is retryable or not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	retry, ok := err.(retryable)
	return ok && retry.Retryable()
}
