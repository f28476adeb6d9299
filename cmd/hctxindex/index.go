package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

func indexCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("usage: hctxindex index <file> [file...]")
	}

	eng, cfg, err := newEngine(c)
	if err != nil {
		return err
	}

	for _, arg := range c.Args().Slice() {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Project.Root, path)
		}
		eng.Add(path)
	}
	eng.Wait()

	if err := eng.Close(); err != nil {
		return err
	}

	fmt.Printf("indexed %d file(s)\n", c.NArg())
	return nil
}

func indexAllCommand(c *cli.Context) error {
	eng, _, err := newEngine(c)
	if err != nil {
		return err
	}

	eng.IndexAll()
	eng.Wait()

	if err := eng.Close(); err != nil {
		return err
	}

	fmt.Println("index_all complete")
	return nil
}
