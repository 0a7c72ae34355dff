// Command mock-controller stands in for the piezo controller on a TCP port.
// Point a device at it with dev: tcp://localhost:9999.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net"

	"piezo-writer/protocol"
)

func main() {
	addr := flag.String("listen", ":9999", "TCP listen address")
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("Failed to start mock controller:", err)
		return
	}
	defer listener.Close()

	fmt.Println("=== Mock Piezo Controller ===")
	fmt.Println("Listening on TCP", *addr)
	fmt.Println("Waiting for connections...")

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}
		fmt.Println("[MockPiezo] Client connected:", conn.RemoteAddr())
		go handleConnection(conn)
	}
}

func handleConnection(conn net.Conn) {
	defer conn.Close()

	var volts [protocol.AxisCount]float64
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		axis, v, err := protocol.ParseCommand(scanner.Bytes())
		if err != nil {
			fmt.Println("[MockPiezo] Rejected:", err)
			conn.Write([]byte("CMD_NOT_DEFINED\r\n"))
			continue
		}

		cmd, err := protocol.BuildVoltageCommand(axis, v)
		if errors.Is(err, protocol.ErrVoltageRange) {
			fmt.Printf("[MockPiezo] %s axis: %v\n", axis, err)
			conn.Write([]byte("CMD_ARG_INVALID\r\n"))
			continue
		}
		fmt.Printf("[MockPiezo] RX %q\n", cmd)

		volts[axis] = v
		fmt.Printf("[MockPiezo] %s\n", protocol.FormatVoltages(volts))
		// The real controller echoes a prompt; the writer discards it
		conn.Write([]byte(">"))
	}
	fmt.Println("[MockPiezo] Connection closed")
}
