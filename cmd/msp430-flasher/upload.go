package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/msp430-flasher/internal/flasher"
	"github.com/bigbag/msp430-flasher/internal/hexfile"
)

var (
	verifyFlag        bool
	eraseFlag         bool
	resetFlag         bool
	crcPolicyFlag     string
	collectErrorsFlag bool
)

func runUpload(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	if err := validateBaud(); err != nil {
		return err
	}
	policy, err := hexfile.ParseCRCPolicy(crcPolicyFlag)
	if err != nil {
		return err
	}

	// Read image file
	img, err := hexfile.ParseFile(imagePath,
		hexfile.WithCRCPolicy(policy),
		hexfile.WithCollectErrors(collectErrorsFlag),
	)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	total := img.DataSize()
	fmt.Printf("Image: %s (%d bytes in %d blocks)\n", imagePath, total, len(img.Groups()))

	conn, err := openConnection(flasher.WithVerify(verifyFlag))
	if err != nil {
		return err
	}
	defer conn.Close()

	if eraseFlag {
		fmt.Println("Mass erasing...")
		if err := conn.MassErase(); err != nil {
			return fmt.Errorf("mass erase failed: %w", err)
		}
	}

	if err := unlockAndSpeedUp(conn, eraseFlag); err != nil {
		return err
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Writing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	conn.SetProgressCallback(func(current, _ int) {
		bar.Set(current)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := conn.Upload(ctx, img)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	bar.Finish()
	fmt.Printf("\nWrote %d bytes in %d packets", stats.Bytes, stats.Packets)
	if stats.Retries > 0 {
		fmt.Printf(" (%d retries)", stats.Retries)
	}
	fmt.Println()

	if resetFlag {
		fmt.Println("Resetting device...")
		if err := conn.TriggerReset(); err != nil {
			fmt.Printf("Warning: reset failed: %v\n", err)
		}
	}

	fmt.Println("Done!")
	return nil
}
