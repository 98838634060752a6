package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/akamensky/argparse"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/client/comms"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	bind := args.String("a", "address", &argparse.Options{Required: true, Help: "Target host address"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS",
		Default: constants.DEFAULT_DSCP})
	file := args.String("f", "file", &argparse.Options{Required: true, Help: "File path"})
	keys := args.String("k", "keyfile", &argparse.Options{Required: false, Help: "Path for the persistent RSA keypair (generated on first use)"})
	name := args.String("n", "name", &argparse.Options{Required: true, Help: "Client display name"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Target port",
		Default: constants.DEFAULT_PORT})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	// Do nothing if it's a folder.
	if info, err := os.Stat(*file); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	} else if info.IsDir() {
		fmt.Println("Provided path is directory. Skipping.")
		os.Exit(0)
	}

	addr := *bind + ":" + strconv.Itoa(*port)

	client := new(comms.Client)

	if err := client.LoadOrCreateKeys(*keys); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	// Connect to host.
	if err := client.Connect(addr, *dscp); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer client.Close()
	fmt.Println("Connected to", addr)

	if err := client.Register(*name); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	fmt.Println("Registered as", *name)

	if err := client.ExchangeKeys(*name); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	fmt.Println("Session key established")

	fmt.Println("Starting file transfer for", *file)
	crc, err := client.SendFile(*file)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(2)
	}

	fmt.Printf("Server confirmed file has been stored, checksum %08x\n", crc)
}
