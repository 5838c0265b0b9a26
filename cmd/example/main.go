package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/aligator/sectorfs"
	"github.com/spf13/afero"
)

// main is just a example main to play with sectorfs through io/fs.
func main() {
	argsWithoutProg := os.Args[1:]
	if len(argsWithoutProg) <= 0 {
		fmt.Println("Please provide an image filename.")
		os.Exit(1)
	}

	image, err := sectorfs.Open(afero.NewOsFs(), argsWithoutProg[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer image.Close()

	fmt.Printf("Opened image '%v' with %v\n\n", image.Name(), image.Geometry())

	goFs := sectorfs.NewGoFS(image)

	var first string
	err = fs.WalkDir(goFs, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fmt.Println(path, info.IsDir(), info.Size())
		if !d.IsDir() && first == "" {
			first = path
		}
		return nil
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if first == "" {
		fmt.Println("The image contains no files.")
		return
	}

	content, err := fs.ReadFile(goFs, first)
	if err != nil {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Println("\n\nContent of " + first + ":\n\n" + string(content))

	file, err := image.Open(first)
	if err != nil {
		fmt.Println("could not open the file", err)
		os.Exit(1)
	}
	defer file.Close()

	offset, err := file.Seek(-int64(len(content))/2, io.SeekEnd)
	if err != nil {
		fmt.Println("could not seek", err)
		os.Exit(1)
	}

	buffer := make([]byte, 52)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Printf("\n\nContent of %s at offset %d using a small buffer:\n\n%s\n", first, offset, buffer[:n])
}
