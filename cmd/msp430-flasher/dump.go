package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/msp430-flasher/internal/hexfile"
	"github.com/bigbag/msp430-flasher/internal/protocol"
)

var (
	outfileFlag   string
	startAddrFlag uint32
	endAddrFlag   uint32
	formatFlag    string
)

var supportedFormats = []string{"hex"}

func runDump(cmd *cobra.Command, args []string) error {
	if err := validateBaud(); err != nil {
		return err
	}
	if formatFlag != "hex" {
		return fmt.Errorf("format %q not supported, supported formats: %v", formatFlag, supportedFormats)
	}
	if endAddrFlag < startAddrFlag || endAddrFlag > protocol.MaxAddress {
		return fmt.Errorf("invalid address range 0x%X-0x%X", startAddrFlag, endAddrFlag)
	}

	var out io.Writer = os.Stdout
	if outfileFlag == "" {
		statusOut = os.Stderr
	} else {
		f, err := os.Create(outfileFlag)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	conn, err := openConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := unlockAndSpeedUp(conn, false); err != nil {
		return err
	}

	total := int(endAddrFlag-startAddrFlag) + 1
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Reading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionClearOnFinish(),
	)
	conn.SetProgressCallback(func(current, _ int) {
		bar.Set(current)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := conn.ReadMemory(ctx, startAddrFlag, endAddrFlag)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	bar.Finish()

	img := hexfile.New()
	img.AppendData(startAddrFlag, data)
	img.Append(hexfile.EOFRecord())
	if _, err := img.WriteTo(out); err != nil {
		return err
	}

	fmt.Fprintf(statusOut, "Read %d bytes from 0x%06X\n", len(data), startAddrFlag)
	return nil
}
