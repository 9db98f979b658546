package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/systemshift/giclone/internal/dag"
	giclonefuse "github.com/systemshift/giclone/internal/fuse"
	"github.com/systemshift/giclone/internal/repo"
)

type command struct {
	usage string
	run   func(args []string) error
}

var workDir string

func commands() map[string]command {
	return map[string]command{
		"init":     {"init [dir]", runInit},
		"add":      {"add <path>...", runAdd},
		"rm":       {"rm <path>...", runRemove},
		"commit":   {"commit -m <message>", runCommit},
		"branch":   {"branch [-d] [name]", runBranch},
		"checkout": {"checkout [-f] <branch|cid>", runCheckout},
		"log":      {"log [-n N]", runLog},
		"merge":    {"merge <branch>", runMerge},
		"diff":     {"diff <rev> [rev]", runDiff},
		"status":   {"status", runStatus},
		"reflog":   {"reflog [-n N]", runReflog},
		"clone":    {"clone <dest>", runClone},
		"mount":    {"mount [-debug] <mountpoint>", runMount},
	}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("giclone: ")

	flag.StringVar(&workDir, "C", ".", "Run as if started in this directory")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "giclone - local version control\n\n")
		fmt.Fprintf(os.Stderr, "Usage: giclone [-C dir] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, name := range []string{"init", "add", "rm", "commit", "branch", "checkout", "log", "merge", "diff", "status", "reflog", "clone", "mount"} {
			fmt.Fprintf(os.Stderr, "  %s\n", commands()[name].usage)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	cmd, ok := commands()[name]
	if !ok {
		log.Printf("unknown command %q", name)
		flag.Usage()
		os.Exit(2)
	}

	if err := cmd.run(flag.Args()[1:]); err != nil {
		var ce *repo.ConflictError
		if errors.As(err, &ce) {
			for _, p := range ce.Paths {
				fmt.Printf("CONFLICT (content): Merge conflict in %s\n", p)
			}
			fmt.Println("Automatic merge failed; nothing was changed.")
			os.Exit(1)
		}
		log.Fatalf("%s: %v", name, err)
	}
}

func openRepo() (*repo.Repository, error) {
	root, err := repo.Discover(workDir)
	if err != nil {
		return nil, err
	}
	return repo.Open(root)
}

// repoPaths rebases command-line paths, given relative to -C, onto the
// repository root.
func repoPaths(r *repo.Repository, args []string) ([]string, error) {
	base, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		p := a
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		rel, err := filepath.Rel(r.Root(), p)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func shortCID(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}

func runMount(args []string) error {
	fset := flag.NewFlagSet("mount", flag.ExitOnError)
	debug := fset.Bool("debug", false, "Log FUSE requests")
	fset.Parse(args)
	if fset.NArg() != 1 {
		return errors.New("usage: " + commands()["mount"].usage)
	}
	mountpoint := fset.Arg(0)

	r, err := openRepo()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(mountpoint, 0755); err != nil {
		return fmt.Errorf("create mountpoint: %w", err)
	}

	log.Printf("mounting %s at %s", r.Root(), mountpoint)
	server, err := giclonefuse.MountFS(mountpoint, r, *debug)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		log.Println("shutting down...")
		server.Unmount()
	}()

	head, err := r.Head()
	if err == nil && head.CID.Defined() {
		log.Printf("ready (pid %d, HEAD %s)", os.Getpid(), shortCID(dag.CIDToFilename(head.CID)))
	} else {
		log.Printf("ready (pid %d)", os.Getpid())
	}
	server.Wait()
	log.Println("stopped")
	return nil
}
