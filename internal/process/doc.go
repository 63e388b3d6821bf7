// Package process runs external media pipelines.
//
// A Process wraps os/exec for a single subprocess whose stdout carries
// data and whose stderr carries log output:
//   - Stdout is handed to the caller as an io.Reader
//   - Stderr lines are logged at the level a LogParser extracts
//   - The first error-level line is kept for error reporting
//   - Stop sends SIGINT and force kills after a timeout
//
// Example:
//
//	p := process.New("cam-101", "gst-launch-1.0 -q videotestsrc ! jpegenc ! fdsink fd=1", logger)
//	stdout, err := p.Start()
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
//	io.Copy(dst, stdout)
package process
