package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestFromStatus(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(FromStatus(429), ShouldEqual, RateLimited)
		So(FromStatus(401), ShouldEqual, Auth)
		So(FromStatus(403), ShouldEqual, Auth)
		So(FromStatus(500), ShouldEqual, Transient)
		So(FromStatus(503), ShouldEqual, Transient)
		So(FromStatus(408), ShouldEqual, Transient)
		So(FromStatus(404), ShouldEqual, Permanent)
		So(FromStatus(200), ShouldEqual, Unknown)
	})
}

func TestKindOf(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		base := New(RateLimited, "fetch", errors.New("requests limit"))
		wrapped := fmt.Errorf("sync fixtures: %w", base)

		Convey("Then the kind survives wrapping", func() {
			So(KindOf(wrapped), ShouldEqual, RateLimited)
			So(Is(wrapped, RateLimited), ShouldBeTrue)
			So(IsRetryable(wrapped), ShouldBeFalse)
		})

		Convey("Then network and deadline errors are transient", func() {
			So(KindOf(timeoutErr{}), ShouldEqual, Transient)
			So(KindOf(context.DeadlineExceeded), ShouldEqual, Transient)
			So(IsRetryable(context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Then cancellation is not retried", func() {
			So(KindOf(context.Canceled), ShouldEqual, Permanent)
			So(IsRetryable(context.Canceled), ShouldBeFalse)
		})

		Convey("Then malformed payloads are retryable", func() {
			So(IsRetryable(Newf(Malformed, "decode", "bad json")), ShouldBeTrue)
		})

		Convey("Then nil and plain errors are unknown", func() {
			So(KindOf(nil), ShouldEqual, Unknown)
			So(KindOf(errors.New("x")), ShouldEqual, Unknown)
			So(Is(nil, Unknown), ShouldBeFalse)
		})
	})
}

func TestErrorString(t *testing.T) {
	Convey("Given a classified error with a status", t, func() {
		err := &Error{Kind: Auth, Op: "GET fixtures", Status: 401, Err: errors.New("token invalid")}
		So(err.Error(), ShouldEqual, "GET fixtures: auth (status 401): token invalid")
		So(errors.Unwrap(err).Error(), ShouldEqual, "token invalid")
	})
}
