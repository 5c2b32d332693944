package kernel

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/videoout"
)

// Result is a guest result code. Negative values are errors.
type Result int32

// errorCode converts an unsigned guest error code, e.g. 0x80020002, to its
// signed representation.
const errorCode = 1 << 32

const (
	OK Result = 0

	ErrorENOENT    Result = 0x80020002 - errorCode
	ErrorEINTR     Result = 0x80020004 - errorCode
	ErrorEBADF     Result = 0x80020009 - errorCode
	ErrorEDEADLK   Result = 0x8002000B - errorCode
	ErrorEINVAL    Result = 0x80020016 - errorCode
	ErrorETIMEDOUT Result = 0x8002003C - errorCode

	ErrorVideoOutInvalidValue      Result = 0x80290001 - errorCode
	ErrorVideoOutInvalidAddress    Result = 0x80290002 - errorCode
	ErrorVideoOutResourceBusy      Result = 0x80290009 - errorCode
	ErrorVideoOutInvalidIndex      Result = 0x8029000A - errorCode
	ErrorVideoOutInvalidHandle     Result = 0x8029000B - errorCode
	ErrorVideoOutInvalidEventQueue Result = 0x8029000C - errorCode
	ErrorVideoOutSlotOccupied      Result = 0x80290010 - errorCode
	ErrorVideoOutFlipQueueFull     Result = 0x80290012 - errorCode
)

// resultErrors is in order of precedence, since errors may be marked with
// more than one sentinel.
var resultErrors = [...]struct {
	err    error
	result Result
	name   string
}{
	{videoout.ErrInvalidHandle, ErrorVideoOutInvalidHandle, `VIDEO_OUT_ERROR_INVALID_HANDLE`},
	{videoout.ErrInvalidEventQueue, ErrorVideoOutInvalidEventQueue, `VIDEO_OUT_ERROR_INVALID_EVENT_QUEUE`},
	{videoout.ErrSlotOccupied, ErrorVideoOutSlotOccupied, `VIDEO_OUT_ERROR_SLOT_OCCUPIED`},
	{videoout.ErrQueueFull, ErrorVideoOutFlipQueueFull, `VIDEO_OUT_ERROR_FLIP_QUEUE_FULL`},
	{videoout.ErrInvalidValue, ErrorVideoOutInvalidValue, `VIDEO_OUT_ERROR_INVALID_VALUE`},
	{videoout.ErrInvalidAddress, ErrorVideoOutInvalidAddress, `VIDEO_OUT_ERROR_INVALID_ADDRESS`},
	{videoout.ErrInvalidIndex, ErrorVideoOutInvalidIndex, `VIDEO_OUT_ERROR_INVALID_INDEX`},
	{videoout.ErrResourceBusy, ErrorVideoOutResourceBusy, `VIDEO_OUT_ERROR_RESOURCE_BUSY`},
	{videoout.ErrWouldDeadlock, ErrorEDEADLK, `KERNEL_ERROR_EDEADLK`},
	{equeue.ErrNotFound, ErrorENOENT, `KERNEL_ERROR_ENOENT`},
	{equeue.ErrTimedOut, ErrorETIMEDOUT, `KERNEL_ERROR_ETIMEDOUT`},
	{equeue.ErrClosed, ErrorEBADF, `KERNEL_ERROR_EBADF`},
	{equeue.ErrInvalidArgument, ErrorEINVAL, `KERNEL_ERROR_EINVAL`},
	{context.DeadlineExceeded, ErrorETIMEDOUT, `KERNEL_ERROR_ETIMEDOUT`},
	{context.Canceled, ErrorEINTR, `KERNEL_ERROR_EINTR`},
}

// ResultOf maps an error returned by the equeue or videoout packages to a
// guest result code. Unrecognised errors map to ErrorEINVAL.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	for _, v := range resultErrors {
		if errors.Is(err, v.err) {
			return v.result
		}
	}
	return ErrorEINVAL
}

// Code returns the unsigned guest representation, e.g. 0x80020002.
func (r Result) Code() uint32 {
	return uint32(r)
}

// IsError returns true for negative results.
func (r Result) IsError() bool {
	return r < 0
}

func (r Result) String() string {
	if r == OK {
		return `OK`
	}
	for _, v := range resultErrors {
		if v.result == r {
			return v.name
		}
	}
	return fmt.Sprintf(`%#08x`, r.Code())
}
