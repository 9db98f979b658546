package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/repo"
)

func runInit(args []string) error {
	dir := workDir
	if len(args) > 0 {
		dir = filepath.Join(workDir, args[0])
	}
	r, err := repo.Init(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Initialized empty repository in %s\n", r.MetaDir())
	return nil
}

func runAdd(args []string) error {
	if len(args) == 0 {
		return errors.New("nothing specified, nothing added")
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	paths, err := repoPaths(r, args)
	if err != nil {
		return err
	}
	_, err = r.Add(paths...)
	return err
}

func runRemove(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rm <path>...")
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	paths, err := repoPaths(r, args)
	if err != nil {
		return err
	}
	removed, err := r.Remove(paths...)
	if err != nil {
		return err
	}
	for _, p := range removed {
		fmt.Printf("rm '%s'\n", p)
	}
	return nil
}

func runCommit(args []string) error {
	fset := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fset.String("m", "", "Commit message")
	fset.Parse(args)

	r, err := openRepo()
	if err != nil {
		return err
	}
	c, err := r.Commit(*message)
	if err != nil {
		return err
	}
	head, err := r.Head()
	if err != nil {
		return err
	}
	where := head.Branch
	if head.Detached {
		where = "detached HEAD"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(*message), "\n")
	fmt.Printf("[%s %s] %s\n", where, shortCID(dag.CIDToFilename(c)), line)
	return nil
}

func runBranch(args []string) error {
	fset := flag.NewFlagSet("branch", flag.ExitOnError)
	del := fset.Bool("d", false, "Delete the named branch")
	fset.Parse(args)

	r, err := openRepo()
	if err != nil {
		return err
	}
	switch {
	case fset.NArg() == 0 && !*del:
		branches, err := r.Branches()
		if err != nil {
			return err
		}
		for _, b := range branches {
			marker := " "
			if b.Current {
				marker = "*"
			}
			fmt.Printf("%s %s %s\n", marker, b.Name, shortCID(dag.CIDToFilename(b.CID)))
		}
		return nil
	case fset.NArg() != 1:
		return errors.New("usage: " + commands()["branch"].usage)
	case *del:
		if err := r.DeleteBranch(fset.Arg(0)); err != nil {
			return err
		}
		fmt.Printf("Deleted branch %s\n", fset.Arg(0))
		return nil
	default:
		_, err := r.Branch(fset.Arg(0))
		return err
	}
}

func runCheckout(args []string) error {
	fset := flag.NewFlagSet("checkout", flag.ExitOnError)
	force := fset.Bool("f", false, "Discard staged changes")
	fset.Parse(args)
	if fset.NArg() != 1 {
		return errors.New("usage: " + commands()["checkout"].usage)
	}

	r, err := openRepo()
	if err != nil {
		return err
	}
	res, err := r.Checkout(fset.Arg(0), repo.CheckoutOptions{Force: *force})
	if err != nil {
		return err
	}
	if res.Branch != "" {
		fmt.Printf("Switched to branch '%s'\n", res.Branch)
	} else {
		fmt.Printf("HEAD is now at %s\n", shortCID(dag.CIDToFilename(res.CID)))
	}
	return nil
}

func runLog(args []string) error {
	fset := flag.NewFlagSet("log", flag.ExitOnError)
	n := fset.Int("n", 0, "Show at most N commits")
	fset.Parse(args)

	r, err := openRepo()
	if err != nil {
		return err
	}
	entries, err := r.Log(*n)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("commit %s\n", dag.CIDToFilename(e.CID))
		if e.Commit.IsMerge() {
			fmt.Printf("Merge: %s %s\n", shortCID(e.Commit.Parent), shortCID(e.Commit.MergeParent))
		}
		if e.Commit.Author != "" {
			fmt.Printf("Author: %s\n", e.Commit.Author)
		}
		fmt.Printf("Date:   %s\n\n", e.Commit.Timestamp.Local().Format("Mon Jan 2 15:04:05 2006 -0700"))
		for _, line := range strings.Split(e.Commit.Message, "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
	return nil
}

func runMerge(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands()["merge"].usage)
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	res, err := r.Merge(args[0])
	if err != nil {
		return err
	}
	switch res.Kind {
	case repo.MergeUpToDate:
		fmt.Println("Already up to date.")
	case repo.MergeFastForward:
		fmt.Printf("Updating %s..%s\nFast-forward\n", shortCID(dag.CIDToFilename(res.Ours)), shortCID(dag.CIDToFilename(res.Commit)))
	default:
		fmt.Printf("Merge made by the three-way strategy: %s\n", shortCID(dag.CIDToFilename(res.Commit)))
	}
	return nil
}

func runDiff(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: " + commands()["diff"].usage)
	}
	to := "HEAD"
	if len(args) == 2 {
		to = args[1]
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	ch, err := r.Diff(args[0], to)
	if err != nil {
		return err
	}
	printChanges("", ch)
	return nil
}

func printChanges(indent string, ch repo.Changes) {
	for _, p := range ch.Added {
		fmt.Printf("%sA %s\n", indent, p)
	}
	for _, p := range ch.Modified {
		fmt.Printf("%sM %s\n", indent, p)
	}
	for _, p := range ch.Removed {
		fmt.Printf("%sD %s\n", indent, p)
	}
}

func runStatus(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	st, err := r.Status()
	if err != nil {
		return err
	}

	switch {
	case st.Head.Detached:
		fmt.Printf("HEAD detached at %s\n", shortCID(dag.CIDToFilename(st.Head.CID)))
	case !st.Head.CID.Defined():
		fmt.Printf("On branch %s\n\nNo commits yet\n", st.Head.Branch)
	default:
		fmt.Printf("On branch %s\n", st.Head.Branch)
	}
	if st.Clean() {
		fmt.Println("nothing to commit, working tree clean")
		return nil
	}
	if !st.Staged.Empty() {
		fmt.Println("\nChanges to be committed:")
		printChanges("  ", st.Staged)
	}
	if len(st.Modified) > 0 || len(st.Deleted) > 0 {
		fmt.Println("\nChanges not staged for commit:")
		printChanges("  ", repo.Changes{Modified: st.Modified, Removed: st.Deleted})
	}
	if len(st.Untracked) > 0 {
		fmt.Println("\nUntracked files:")
		for _, p := range st.Untracked {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func runReflog(args []string) error {
	fset := flag.NewFlagSet("reflog", flag.ExitOnError)
	n := fset.Int("n", 20, "Show at most N entries (0 for all)")
	fset.Parse(args)

	r, err := openRepo()
	if err != nil {
		return err
	}
	entries, err := r.ReflogEntries(*n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s %-8s %s\n", shortCID(e.New), e.Ref, e.Message)
	}
	return nil
}

func runClone(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands()["clone"].usage)
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	clone, err := r.Clone(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Cloned into %s\n", clone.Root())
	return nil
}
