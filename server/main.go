package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/akamensky/argparse"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/fileio"
	server "github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/server/controller"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/server/reassembly"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/storage"
)

func main() {
	args := argparse.NewParser("server", constants.Title)

	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address",
		Default: "0.0.0.0"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DEFAULT_PORT})
	path := args.String("r", "root", &argparse.Options{Required: true, Help: "Root path for storing files"})
	pack := args.Flag("z", "compress", &argparse.Options{Help: "LZ4-compress stored files at rest"})
	keyed := args.Flag("s", "session-keyed", &argparse.Options{Help: "Key in-flight transfers by connection as well as (client, filename)"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	blobs, err := fileio.NewBlobWriter(*path, *pack)
	if err != nil {
		fmt.Println("Invalid root folder -", err.Error())
		os.Exit(1)
	}

	var options []reassembly.Option
	if *keyed {
		options = append(options, reassembly.WithSessionKeying())
	}

	bindTo := *bind + ":" + strconv.Itoa(*port)

	srv := server.New(storage.NewMemoryStore(), blobs, options...)
	if err := srv.StartListening(bindTo); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
