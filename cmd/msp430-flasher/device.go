package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigbag/msp430-flasher/internal/detect"
	"github.com/bigbag/msp430-flasher/internal/flasher"
	"github.com/bigbag/msp430-flasher/internal/hexfile"
	"github.com/bigbag/msp430-flasher/internal/protocol"
	"github.com/bigbag/msp430-flasher/internal/serial"
)

// statusOut receives progress lines. dump moves it to stderr when the image
// goes to stdout.
var statusOut io.Writer = os.Stdout

// resolveDevice returns --device or the first port with a responding BSL.
func resolveDevice() (string, error) {
	if deviceFlag != "" {
		return deviceFlag, nil
	}

	fmt.Fprintln(statusOut, "Detecting device...")
	result, err := detect.DetectDevice()
	if err != nil {
		return "", fmt.Errorf("device detection failed: %w", err)
	}
	fmt.Fprintf(statusOut, "Found BSL (%s) on %s\n", result.VersionString(), result.Port)
	return result.Port, nil
}

// openConnection opens the port and enters the BSL at the handshake rate.
func openConnection(opts ...flasher.Option) (*flasher.Connection, error) {
	portName, err := resolveDevice()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(portName, serial.DefaultLineParams(protocol.HandshakeBaudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open port: %w", err)
	}

	conn := flasher.New(port, opts...)

	fmt.Fprintf(statusOut, "Port: %s\n", portName)
	fmt.Fprintln(statusOut, "Entering BSL...")
	if err := conn.EnterBSL(); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// unlockAndSpeedUp sends the password and switches to --baud. erased is set
// when the caller has just mass erased the device.
func unlockAndSpeedUp(conn *flasher.Connection, erased bool) error {
	password, err := sessionPassword(erased)
	if err != nil {
		return err
	}
	if err := conn.Unlock(password); err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}

	if baudFlag != protocol.HandshakeBaudRate {
		if err := conn.ChangeBaudRate(baudFlag); err != nil {
			return fmt.Errorf("baud change failed: %w", err)
		}
	}
	fmt.Fprintf(statusOut, "Connected @ %d baud\n", conn.Baud())
	return nil
}

// sessionPassword picks the unlock password. Mass erase clears the vector
// table, so an erased device always takes the default password and
// --password-file no longer applies. Nil selects the default.
func sessionPassword(erased bool) ([]byte, error) {
	if erased {
		if passwordFileFlag != "" {
			fmt.Fprintln(statusOut, "Device erased, using the default password instead of --password-file")
		}
		return nil, nil
	}
	return loadPassword()
}

// loadPassword reads the vector table of --password-file. Nil selects the
// erased-device password.
func loadPassword() ([]byte, error) {
	if passwordFileFlag == "" {
		return nil, nil
	}
	img, err := hexfile.ParseFile(passwordFileFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to read password file: %w", err)
	}
	return img.Bytes(protocol.PasswordAddress, protocol.PasswordSize, 0xFF), nil
}

func validateBaud() error {
	if _, err := protocol.BaudRateCode(baudFlag); err != nil {
		return err
	}
	return nil
}

func runErase(cmd *cobra.Command, args []string) error {
	conn, err := openConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Println("Mass erasing...")
	if err := conn.MassErase(); err != nil {
		return fmt.Errorf("mass erase failed: %w", err)
	}

	fmt.Println("Done!")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	portName, err := resolveDevice()
	if err != nil {
		return err
	}

	port, err := serial.Open(portName, serial.DefaultLineParams(protocol.HandshakeBaudRate))
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	conn := flasher.New(port)
	defer conn.Close()

	fmt.Printf("Resetting device on %s...\n", portName)
	return conn.TriggerReset()
}
