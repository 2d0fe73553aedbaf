package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/filmport/internal/adapters/http/api"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the operational routes", t, func() {
		srv := api.NewServer(":0")
		h := srv.Handler()

		Convey("When GET /healthz is called", func() {
			srv.Health().SetPhase(api.PhaseMigrating)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it reports the current phase as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
				So(body["phase"], ShouldEqual, api.PhaseMigrating)
			})
		})

		Convey("When /healthz receives a POST", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(rec.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
		})

		Convey("When GET /metrics is called after some pipeline activity", func() {
			metrics.RecordRowRead("genre")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the pipeline metrics are exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "filmport_migration_rows_read_total")
			})
		})

		Convey("When a rejected request precedes a scrape", func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/healthz", nil))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the request is counted with its method and status", func() {
				So(rec.Body.String(), ShouldContainSubstring,
					`filmport_migration_http_requests_total{endpoint="healthz",method="DELETE",status="405"}`)
			})
		})

		Convey("When an unknown path is requested", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables", nil))

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerLifecycle(t *testing.T) {
	Convey("Given a server on an ephemeral port", t, func() {
		ctx := context.Background()
		srv := api.NewServer("127.0.0.1:0")
		So(srv.Start(ctx), ShouldBeNil)

		Convey("When it is queried and shut down", func() {
			resp, err := http.Get("http://" + srv.Addr() + "/healthz")
			So(err, ShouldBeNil)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()

			Convey("Then it served the request and stops cleanly", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(strings.Contains(string(body), `"phase":"starting"`), ShouldBeTrue)
				So(srv.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})
	})

	Convey("Given an address that cannot be bound", t, func() {
		srv := api.NewServer("256.0.0.1:99999")

		So(srv.Start(context.Background()), ShouldNotBeNil)
		So(srv.Shutdown(context.Background()), ShouldBeNil)
	})
}
