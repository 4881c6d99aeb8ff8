// btcli is an interactive shell for poking a running btserviced over its
// unix socket. Commands map one-to-one onto the daemon's IPC protocol.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/3EleVen/android-system-bt/config"
	"github.com/3EleVen/android-system-bt/ipc"
)

const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

var commands = []struct {
	name string
	help string
}{
	{ipc.CommandEnable, "Enable the Bluetooth adapter"},
	{ipc.CommandDisable, "Disable the Bluetooth adapter"},
	{ipc.CommandGetState, "Print the adapter power state"},
	{ipc.CommandIsEnabled, "Print whether the adapter is enabled"},
	{ipc.CommandGetLocalAddress, "Print the adapter address"},
	{ipc.CommandGetLocalName, "Print the adapter name"},
	{ipc.CommandSetLocalName + " <name>", "Set the adapter name"},
	{ipc.CommandAdapterInfo, "Print all adapter details"},
	{"help", "Show this message"},
	{"quit", "Exit"},
}

func printHelp() {
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-24s %s\n", c.name, c.help)
	}
}

func main() {
	socketPath := flag.String("socket", config.DefaultSocketPath(), "daemon socket path")
	flag.Parse()

	client, err := ipc.Dial(*socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "btcli: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// One-shot mode: a command on the argv runs and exits.
	if flag.NArg() > 0 {
		if !runCommand(client, flag.Arg(0), flag.Args()[1:]) {
			os.Exit(1)
		}
		return
	}

	fmt.Println("Bluetooth service CLI. Type \"help\" for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("[bt]> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		default:
			runCommand(client, fields[0], fields[1:])
		}
	}
}

func runCommand(client *ipc.Client, command string, args []string) bool {
	resp, err := client.Do(command, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "btcli: %v\n", err)
		return false
	}
	if resp.Error != "" {
		fmt.Printf("%serror: %s%s\n", colorRed, resp.Error, colorReset)
		return false
	}
	if resp.Value != "" {
		fmt.Println(resp.Value)
	} else {
		fmt.Printf("%sok%s\n", colorGreen, colorReset)
	}
	return true
}
