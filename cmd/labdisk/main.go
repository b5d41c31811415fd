package main

import (
	"log"
	"os"

	"github.com/dargueta/labdisk/file_systems/flatfs"
	"github.com/urfave/cli/v2"
)

func constraintFlags() []cli.Flag {
	defaults := flatfs.DefaultConstraints
	return []cli.Flag{
		&cli.UintFlag{
			Name:    "descriptive-blocks",
			Usage:   "blocks reserved for the bitmap and descriptor table",
			Value:   defaults.DescriptiveBlocks,
			EnvVars: []string{"LABDISK_DESCRIPTIVE_BLOCKS"},
		},
		&cli.UintFlag{
			Name:    "length-bytes",
			Usage:   "width of the file length field in a descriptor",
			Value:   defaults.BytesForFileLength,
			EnvVars: []string{"LABDISK_LENGTH_BYTES"},
		},
		&cli.UintFlag{
			Name:    "max-blocks-per-file",
			Value:   defaults.MaxBlocksPerFile,
			EnvVars: []string{"LABDISK_MAX_BLOCKS_PER_FILE"},
		},
		&cli.UintFlag{
			Name:    "max-filename-length",
			Value:   defaults.MaxFilenameLength,
			EnvVars: []string{"LABDISK_MAX_FILENAME_LENGTH"},
		},
		&cli.UintFlag{
			Name:    "oft-size",
			Usage:   "size of the open file table, including the directory",
			Value:   defaults.OFTMaxSize,
			EnvVars: []string{"LABDISK_OFT_SIZE"},
		},
	}
}

func constraintsFromContext(context *cli.Context) flatfs.Constraints {
	return flatfs.Constraints{
		DescriptiveBlocks:  context.Uint("descriptive-blocks"),
		BytesForFileLength: context.Uint("length-bytes"),
		MaxBlocksPerFile:   context.Uint("max-blocks-per-file"),
		MaxFilenameLength:  context.Uint("max-filename-length"),
		OFTMaxSize:         context.Uint("oft-size"),
	}
}

var blockSizeFlag = &cli.UintFlag{
	Name:    "block-size",
	Aliases: []string{"b"},
	Usage:   "size of one block in the image, in bytes",
	Value:   64,
	EnvVars: []string{"LABDISK_BLOCK_SIZE"},
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("labdisk: ")

	app := cli.App{
		Name:  "labdisk",
		Usage: "Create and inspect single-directory fixed-block volume images",
		Flags: constraintFlags(),
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "Run commands against a volume interactively",
				Action: runShell,
			},
			{
				Name:      "demo",
				Usage:     "Run scenario scripts through the shell, echoing each command",
				ArgsUsage: "SCRIPT_NAME...",
				Action:    runDemo,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    "scripts",
						Usage:   "directory containing the scenario scripts",
						Value:   "./scripts",
						EnvVars: []string{"LABDISK_SCRIPTS_DIR"},
					},
				},
			},
			{
				Name:      "ls",
				Usage:     "List the files in an image",
				ArgsUsage: "IMAGE",
				Action:    listImage,
				Flags:     []cli.Flag{blockSizeFlag},
			},
			{
				Name:      "cat",
				Usage:     "Print the contents of a file in an image",
				ArgsUsage: "IMAGE FILE",
				Action:    catFile,
				Flags:     []cli.Flag{blockSizeFlag},
			},
			{
				Name:      "put",
				Usage:     "Copy a host file into an image",
				ArgsUsage: "IMAGE HOST_FILE [NAME]",
				Action:    putFile,
				Flags:     []cli.Flag{blockSizeFlag},
			},
			{
				Name:      "pack",
				Usage:     "Compress an image with RLE8 and gzip",
				ArgsUsage: "INPUT_FILE OUTPUT_FILE",
				Action:    packImage,
			},
			{
				Name:      "unpack",
				Usage:     "Expand an image compressed with `pack`",
				ArgsUsage: "INPUT_FILE OUTPUT_FILE",
				Action:    unpackImage,
			},
			{
				Name:   "geometries",
				Usage:  "List the predefined disk geometries",
				Action: listGeometries,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}
