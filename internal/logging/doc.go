// Package logging provides structured logging for the file server.
//
// A [Logger] wraps log/slog and can write to two sinks at once: JSON lines
// in {dir}/filesrv.log, rotated by size through a [RotatingWriter], and a
// colored [ConsoleHandler] used by verbose mode. Either sink may be off.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{
//	    Dir:      workDir,
//	    Level:    "info",
//	    Rotation: logging.DefaultRotationConfig(),
//	    Console:  os.Stdout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithComponent("dispatcher").WithRequest(3, "read a.txt").Info("request accepted")
//
// The console line for that call looks like
//
//	[15:04:05.000] [LOG] dispatcher: request accepted seq=3 line="read a.txt"
//
// and the JSON line carries the same fields with component as a regular key.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers made
// with the With* methods share their parent's sinks; close only the root.
package logging
