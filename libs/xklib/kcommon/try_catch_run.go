package kcommon

import (
	"context"
	"fmt"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
)

// TryCatchRun runs fn and converts a panic into a returned *Kerror.
// A *Kerror panic is returned as-is; any other error is wrapped as "UnknownError".
func TryCatchRun(ctx context.Context, fn func()) (ret *kerror.Kerror) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ke, ok := r.(*kerror.Kerror); ok {
			ret = ke
		} else if err, ok := r.(error); ok {
			ret = kerror.Wrap(err, "UnknownError", "", true)
		} else {
			// a non-error panic is a programming error; report it rather than crash the worker
			klogging.Error(ctx).WithPanic(r).Log("NonErrorPanic", "")
			ret = kerror.Create("NonErrorPanic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
	return
}
