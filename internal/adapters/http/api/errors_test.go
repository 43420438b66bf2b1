package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOpError(t *testing.T) {
	Convey("Given an OpError with a kind and a cause", t, func() {
		cause := errors.New("bad json")
		err := WrapKind("api.score", ErrBadRequest, cause)

		Convey("Then both kind and cause match errors.Is", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.score: bad request: bad json")
		})

		Convey("Then Wrap keeps the inner kind", func() {
			outer := Wrap("api.outer", err)
			So(errors.Is(outer, ErrBadRequest), ShouldBeTrue)
			var op *OpError
			So(errors.As(outer, &op), ShouldBeTrue)
			So(op.Op, ShouldEqual, "api.outer")
		})

		Convey("Then Wrap of nil is nil", func() {
			So(Wrap("api.noop", nil), ShouldBeNil)
		})

		Convey("Then NewKind renders without a cause", func() {
			So(NewKind("api.rate_limit", ErrRateLimited).Error(), ShouldEqual, "api.rate_limit: rate limited")
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given errors of every kind", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{&model.IncompleteError{Fields: []string{"stressLevel"}}, http.StatusBadRequest, "incomplete_answers"},
			{WrapKind("op", ErrBadRequest, &model.IncompleteError{}), http.StatusBadRequest, "incomplete_answers"},
			{NewKind("op", ErrBadRequest), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("x: %w", service.ErrInvalidProfile), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("x: %w", service.ErrInvalidImage), http.StatusBadRequest, "bad_request"},
			{NewKind("op", ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
			{Wrap("op", service.ErrNotFound), http.StatusNotFound, "not_found"},
			{&service.DuplicateError{Key: "k", ReportID: "r"}, http.StatusConflict, "duplicate"},
			{Wrap("op", service.ErrConflict), http.StatusConflict, "conflict"},
			{Wrap("op", service.ErrBackpressure), http.StatusTooManyRequests, "backpressure"},
			{NewKind("op", ErrRateLimited), http.StatusTooManyRequests, "rate_limited"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{service.ErrStopped, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		Convey("Then each maps to its status and code", func() {
			for _, c := range cases {
				status, code := statusFor(c.err)
				So(status, ShouldEqual, c.status)
				So(code, ShouldEqual, c.code)
			}
		})
	})
}
