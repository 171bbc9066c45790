package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/bigbag/msp430-flasher/internal/detect"
	"github.com/bigbag/msp430-flasher/internal/protocol"
	"github.com/bigbag/msp430-flasher/internal/serial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	deviceFlag       string
	baudFlag         int
	passwordFileFlag string
	logLevelFlag     string
	logDirFlag       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "msp430-flasher",
		Short: "Program MSP430 F5xx/F6xx devices through the UART BSL",
		Long: `MSP430 Flasher talks to the ROM boot-strap loader (BSL) of MSP430
F5xx/F6xx devices over a serial adapter. DTR drives RST and RTS drives TEST.

It can upload Intel HEX images with CRC verification, dump memory back
to Intel HEX, mass erase and reset the target.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(logLevelFlag, logDirFlag)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&logLevelFlag, "log-level", "l", "warn", "Log level: fatal, error, warn, info or debug")
	rootCmd.PersistentFlags().StringVarP(&logDirFlag, "log-dir", "g", "", "Write log files to this directory")

	// Upload command
	uploadCmd := &cobra.Command{
		Use:   "upload <image.hex>",
		Short: "Upload an Intel HEX image",
		Long: `Upload an Intel HEX image to the target.

By default the main flash is mass erased first and every packet is
verified with the BSL CRC check.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	addDeviceFlags(uploadCmd)
	uploadCmd.Flags().BoolVar(&verifyFlag, "verify", true, "Verify every packet with a CRC check")
	uploadCmd.Flags().BoolVar(&eraseFlag, "erase", true, "Mass erase before writing")
	uploadCmd.Flags().BoolVar(&resetFlag, "reset", false, "Reset the target when done")
	uploadCmd.Flags().StringVar(&crcPolicyFlag, "crc-policy", "abort", "Bad record checksum handling: abort or warn")
	uploadCmd.Flags().BoolVar(&collectErrorsFlag, "collect-errors", false, "Report every bad record instead of stopping at the first")

	// Dump command
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Read memory to an Intel HEX file",
		Args:  cobra.NoArgs,
		RunE:  runDump,
	}
	addDeviceFlags(dumpCmd)
	dumpCmd.Flags().StringVarP(&outfileFlag, "outfile", "o", "", "Output file (default stdout)")
	dumpCmd.Flags().Uint32VarP(&startAddrFlag, "startaddr", "s", protocol.MainFlashStart, "First address to read")
	dumpCmd.Flags().Uint32VarP(&endAddrFlag, "endaddr", "e", protocol.MainFlashEnd, "Last address to read")
	dumpCmd.Flags().StringVarP(&formatFlag, "format", "f", "hex", "Output format, only hex (Intel HEX) is supported")

	// Erase command
	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Mass erase the main flash",
		Args:  cobra.NoArgs,
		RunE:  runErase,
	}
	addDeviceFlags(eraseCmd)

	// Reset command
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the target into its application",
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}
	resetCmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Serial device (auto-detect if not specified)")

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show BSL info",
		Long:  "Detect and show the BSL version and buffer size of connected devices.",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Serial device (scan all if not specified)")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("msp430-flasher %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	rootCmd.AddCommand(uploadCmd, dumpCmd, eraseCmd, resetCmd, infoCmd, versionCmd, listCmd)

	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Serial device (auto-detect if not specified)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate after the handshake")
	cmd.Flags().StringVar(&passwordFileFlag, "password-file", "", "Intel HEX image whose vector table is the BSL password")
}

func runInfo(cmd *cobra.Command, args []string) error {
	if deviceFlag != "" {
		// Check specific port
		result, err := detect.DetectOnPort(deviceFlag)
		if err != nil {
			return fmt.Errorf("failed to detect BSL on %s: %w", deviceFlag, err)
		}
		printDeviceInfo(result)
		return nil
	}

	// Auto-detect
	fmt.Println("Scanning for MSP430 BSL devices...")
	devices, err := detect.ListDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No MSP430 BSL devices found")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("Device %d:\n", i+1)
		printDeviceInfo(&d)
		fmt.Println()
	}

	return nil
}

func printDeviceInfo(d *detect.Result) {
	fmt.Printf("  Port:     %s\n", d.Port)
	fmt.Printf("  BSL:      %s\n", d.VersionString())
	if d.BufferSize != 0 {
		fmt.Printf("  Buffer:   %d bytes\n", d.BufferSize)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPortDetails()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}
