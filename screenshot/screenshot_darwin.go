package screenshot

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework Foundation
#import <CoreGraphics/CoreGraphics.h>
#import <Foundation/Foundation.h>

bool hasScreenRecordingPermission() {
    if (@available(macOS 11.0, *)) {
        return CGPreflightScreenCaptureAccess();
    }
    return true;
}

void requestScreenRecordingPermission() {
    if (@available(macOS 11.0, *)) {
        CGRequestScreenCaptureAccess();
    }
}
*/
import "C"
import (
	"context"
	"errors"
)

// HasPermission checks if the app has screen recording permission.
func HasPermission() bool {
	return bool(C.hasScreenRecordingPermission())
}

// RequestPermission requests screen recording permission from the system.
func RequestPermission() {
	C.requestScreenRecordingPermission()
}

// CaptureInteractive launches the interactive screenshot tool and saves the
// image to a temp file. Returns the path to the saved image file.
func CaptureInteractive(ctx context.Context) (string, error) {
	if !HasPermission() {
		RequestPermission()
		return "", errors.New("screen recording permission required")
	}
	path := tempPath()
	// -i: interactive selection, -x: no sound
	return captureWith(ctx, "screencapture", []string{"-i", "-x", path}, path)
}
