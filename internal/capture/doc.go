// Package capture provides single-device video recording using GStreamer.
//
// It implements the recorder session behind the guided capture flow: a
// Camera acquires one device, pre-rolls a recording pipeline, and produces
// one Recording per take. Muxed output accumulates in ~1s chunks while
// recording so per-segment feedback (haptics, progress) can fire as data
// arrives.
//
// # Quick Start
//
//	cfg := capture.Config{
//	    Device:      "/dev/video0",
//	    Resolution:  capture.Res1080p,
//	    FPS:         30,
//	    BitrateKbps: 8000,
//	}
//
//	cam, err := capture.NewCamera(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Close()
//
//	if err := cam.Open(ctx); err != nil {
//	    if de, ok := capture.AsDeviceError(err); ok {
//	        // Recoverable: show the error screen for de.Kind and retry
//	    }
//	    log.Fatal(err)
//	}
//
//	cam.Start()
//	// ... operator records the angle ...
//	rec, err := cam.Stop()
//
// Device acquisition failures are classified (denied, in-use, not-found,
// unknown) so the caller can show actionable recovery instructions; they
// are always recoverable by closing and reopening the camera.
package capture
