package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dargueta/labdisk/disks"
	"github.com/dargueta/labdisk/errors"
	"github.com/dargueta/labdisk/file_systems/common/filestream"
	"github.com/dargueta/labdisk/file_systems/flatfs"
	"github.com/dargueta/labdisk/shell"
	"github.com/dargueta/labdisk/utilities/compression"
	"github.com/urfave/cli/v2"
)

func shellOptions(context *cli.Context) shell.Options {
	options := shell.DefaultOptions
	options.Constraints = constraintsFromContext(context)
	return options
}

func runShell(context *cli.Context) error {
	return shell.Run(os.Stdin, os.Stdout, shellOptions(context))
}

// openScript looks for `name` in `dir`, then for `name` with a ".txt"
// extension.
func openScript(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	file, err := os.Open(path)
	if err == nil {
		return file, nil
	}
	return os.Open(path + ".txt")
}

func runDemo(context *cli.Context) error {
	if context.NArg() == 0 {
		return cli.Exit("at least one script name is required", 1)
	}

	options := shellOptions(context)
	options.EchoCommands = true

	for _, name := range context.Args().Slice() {
		script, err := openScript(context.Path("scripts"), name)
		if err != nil {
			fmt.Printf("File with provided name does not exist: %s\n\n", name)
			continue
		}

		err = shell.Run(script, os.Stdout, options)
		script.Close()
		if err != nil {
			return fmt.Errorf("script %q: %w", name, err)
		}
		fmt.Println()
	}
	return nil
}

// mountExistingImage mounts an image without creating it if it doesn't exist.
// The number of blocks is inferred from the size of the image.
func mountExistingImage(context *cli.Context, path string) (*flatfs.FileSystem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if compression.IsCompressedPath(path) {
		data, err = compression.DecompressImageToBytes(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	}

	blockSize := context.Uint("block-size")
	if blockSize == 0 || uint(len(data))%blockSize != 0 {
		return nil, errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"image size %d isn't a multiple of the block size %d", len(data), blockSize,
			),
		)
	}

	fs, _, err := flatfs.InitWithConstraints(
		1, 1, uint(len(data))/blockSize, blockSize, path, constraintsFromContext(context),
	)
	return fs, err
}

func listImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return cli.Exit("expected exactly one image path", 1)
	}

	fs, err := mountExistingImage(context, context.Args().First())
	if err != nil {
		return err
	}

	listing, err := fs.Directory()
	if err != nil {
		return err
	}
	stat, err := fs.Stat()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(writer, "NAME\tSIZE\tDESCRIPTOR\t")
	for _, entry := range listing {
		fmt.Fprintf(writer, "%s\t%d\t%d\t\n", entry.Name(), entry.Size(), entry.DescriptorIndex)
	}
	writer.Flush()

	fmt.Printf(
		"%d files, %d/%d blocks free, %d/%d descriptors free\n",
		len(listing),
		stat.FreeBlocks,
		stat.TotalBlocks,
		stat.FreeDescriptors,
		stat.TotalDescriptors,
	)
	return nil
}

func catFile(context *cli.Context) error {
	if context.NArg() != 2 {
		return cli.Exit("expected an image path and a file name", 1)
	}

	fs, err := mountExistingImage(context, context.Args().Get(0))
	if err != nil {
		return err
	}

	stream, err := filestream.Open(fs, context.Args().Get(1), false)
	if err != nil {
		return err
	}
	defer stream.Close()

	_, err = stream.WriteTo(os.Stdout)
	return err
}

func putFile(context *cli.Context) error {
	if context.NArg() < 2 || context.NArg() > 3 {
		return cli.Exit("expected an image path, a host file, and an optional name", 1)
	}

	imagePath := context.Args().Get(0)
	hostPath := context.Args().Get(1)
	name := filepath.Base(hostPath)
	if context.NArg() == 3 {
		name = context.Args().Get(2)
	}

	fs, err := mountExistingImage(context, imagePath)
	if err != nil {
		return err
	}

	hostFile, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer hostFile.Close()

	err = fs.Create(name)
	if err != nil {
		return err
	}

	stream, err := filestream.Open(fs, name, false)
	if err != nil {
		return err
	}

	written, copyErr := stream.ReadFrom(hostFile)
	closeErr := stream.Close()
	if copyErr != nil {
		return fmt.Errorf("copied only %d bytes of %q: %w", written, hostPath, copyErr)
	}
	if closeErr != nil {
		return closeErr
	}
	return fs.Save("")
}

// convertFile streams one host file into another through `convert`.
func convertFile(
	context *cli.Context,
	convert func(input io.Reader, output io.Writer) (int64, error),
	verb string,
) error {
	if context.NArg() != 2 {
		return cli.Exit("expected an input file and an output file", 1)
	}
	sourceFilePath := context.Args().Get(0)
	outputFilePath := context.Args().Get(1)

	sourceFile, err := os.Open(sourceFilePath)
	if err != nil {
		return fmt.Errorf("failed to open file for reading: `%v`: %w", sourceFilePath, err)
	}
	defer sourceFile.Close()

	outFile, err := os.Create(outputFilePath)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: `%v`: %w", outputFilePath, err)
	}
	defer outFile.Close()

	nWritten, err := convert(sourceFile, outFile)
	if err != nil {
		return fmt.Errorf("error %s file: %w", verb, err)
	}

	fmt.Printf("Wrote %d bytes to %s.\n", nWritten, outputFilePath)
	return nil
}

func packImage(context *cli.Context) error {
	return convertFile(context, compression.CompressImage, "compressing")
}

func unpackImage(context *cli.Context) error {
	return convertFile(context, compression.DecompressImage, "expanding")
}

func listGeometries(context *cli.Context) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "SLUG\tNAME\tBLOCKS\tBLOCK SIZE\tNOTES")
	for _, geometry := range disks.Geometries() {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%s\n",
			geometry.Slug,
			geometry.Name,
			geometry.TotalBlocks(),
			geometry.BlockSize(),
			geometry.Notes,
		)
	}
	return writer.Flush()
}
