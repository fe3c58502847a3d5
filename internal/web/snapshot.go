package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"admcal/internal/capture"
	"admcal/internal/config"
	"admcal/internal/convert"
	appLog "admcal/internal/log"
)

// CaptureSnapshot renders /calendar for the current month into
// cfg.SnapshotPath. The page is served from a private loopback listener
// without basic auth, so it works whatever Listen and BasicAuth are.
func (s *Server) CaptureSnapshot(ctx context.Context) error {
	if s.cfg.SnapshotPath == "" {
		return errors.New("web: snapshot_path is empty")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot listener stopped", err)
		}
	}()
	defer srv.Close()

	started := time.Now()
	err = capture.CalendarPNG(ctx, capture.Options{
		URL:        "http://" + ln.Addr().String() + "/calendar",
		OutputPath: s.cfg.SnapshotPath,
	})
	if err != nil {
		return err
	}
	if s.cfg.SnapshotPalette == config.PaletteTricolor {
		if err := convert.ReducePNG(s.cfg.SnapshotPath); err != nil {
			return err
		}
	}
	appLog.Info("snapshot written",
		"path", s.cfg.SnapshotPath,
		"palette", s.cfg.SnapshotPalette,
		"took", time.Since(started).Round(time.Millisecond),
	)
	return nil
}
