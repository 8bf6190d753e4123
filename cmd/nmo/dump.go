// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	nmoparser "github.com/saferwall/nmo"
)

func runDump(paths []string) error {
	var failed bool
	for _, path := range paths {
		if err := dumpFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("one or more files failed to parse")
	}
	return nil
}

func dumpFile(path string) error {
	f, err := nmoparser.New(path, nil)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Parse(); err != nil {
		return err
	}

	if wantJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	all := !wantHeader && !wantObjects && !wantPlugins
	w := tabwriter.NewWriter(os.Stdout, 1, 4, 2, ' ', 0)
	defer w.Flush()

	if wantHeader || all {
		h := f.Header
		fmt.Fprintf(w, "%s\n", path)
		fmt.Fprintf(w, "  file version:\t%d\n", h.FileVersion)
		fmt.Fprintf(w, "  write mode:\t0x%08X\n", h.FileWriteMode)
		fmt.Fprintf(w, "  managers:\t%d\n", h.ManagerCount)
		fmt.Fprintf(w, "  objects:\t%d\n", h.ObjectCount)
		fmt.Fprintf(w, "  max saved id:\t%d\n", h.MaxIDSaved)
		fmt.Fprintf(w, "  data section:\t%d bytes (%d packed)\n",
			h.DataUnpackedSize, h.DataPackedSize)
	}
	if wantObjects || all {
		fmt.Fprintf(w, "  index\tclass\tname\toffset\tsize\n")
		for _, d := range f.Descriptors {
			fmt.Fprintf(w, "  %d\t%d\t%s\t%d\t%d\n",
				d.FileIndex, d.ClassID, d.Name, d.ChunkOffset, d.ChunkSize)
		}
	}
	if wantPlugins || all {
		for _, dep := range f.PluginDeps {
			for _, p := range dep.Plugins {
				fmt.Fprintf(w, "  plugin\t%s\tversion %d\tcategory %d\n",
					p.GUID, p.Version, dep.Category)
			}
		}
		for _, inc := range f.IncludedFiles {
			fmt.Fprintf(w, "  included\t%s\n", inc)
		}
	}
	return nil
}

func runValidate(paths []string) error {
	ctx, err := nmoparser.NewContext(&nmoparser.Options{StrictPlugins: strictDeps})
	if err != nil {
		return err
	}
	defer ctx.Release()

	var failed bool
	for _, path := range paths {
		s := nmoparser.NewSession(ctx)
		var flags nmoparser.LoadFlags
		if validateLoad {
			flags |= nmoparser.LoadValidate
		}
		if err := s.LoadFile(path, flags); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		} else {
			fmt.Printf("%s: OK, %d objects\n", path, s.GetObjectRepository().Count())
			for _, d := range s.GetPluginDiagnostics() {
				if d.Status != nmoparser.PluginStatusOK {
					fmt.Printf("%s: plugin %s version %d: %s\n",
						path, d.RequiredGUID, d.RequiredVersion, d.Status)
				}
			}
		}
		s.Close()
	}
	if failed {
		return fmt.Errorf("one or more files failed to load")
	}
	return nil
}
