package main

import (
	"flag"
	"fmt"
	"os"
)

// configureLogging maps --log-level and --log-dir onto the glog flags.
// Messages at or above the level also go to stderr.
func configureLogging(level, dir string) error {
	threshold, verbosity, err := glogLevel(level)
	if err != nil {
		return err
	}

	settings := map[string]string{
		"stderrthreshold": threshold,
		"v":               verbosity,
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
		settings["log_dir"] = dir
	} else {
		settings["logtostderr"] = "false"
	}

	for name, value := range settings {
		if err := flag.Set(name, value); err != nil {
			return fmt.Errorf("failed to set log flag %s: %w", name, err)
		}
	}
	return nil
}

// glogLevel returns the stderrthreshold and v values for a level name.
func glogLevel(level string) (threshold, verbosity string, err error) {
	switch level {
	case "fatal":
		return "FATAL", "0", nil
	case "error":
		return "ERROR", "0", nil
	case "warn":
		return "WARNING", "0", nil
	case "info":
		return "INFO", "0", nil
	case "debug":
		return "INFO", "2", nil
	}
	return "", "", fmt.Errorf("unknown log level %q, want fatal, error, warn, info or debug", level)
}
