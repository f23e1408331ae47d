package shim_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox/internal/shim"
)

func writableLauncher(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cmdmox-shim")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestGenerateCreatesEntry(t *testing.T) {
	launcher := writableLauncher(t)
	dir := t.TempDir()

	g := shim.New(launcher, dir)
	path, err := g.Generate("git")
	require.NoError(t, err)
	assert.Equal(t, shim.EntryPath(dir, "git"), path)

	_, err = os.Lstat(path)
	assert.NoError(t, err)
}

func TestGenerateIsIdempotentAndRepairsBrokenEntry(t *testing.T) {
	launcher := writableLauncher(t)
	dir := t.TempDir()
	g := shim.New(launcher, dir)

	_, err := g.Generate("git")
	require.NoError(t, err)

	// Break the entry.
	require.NoError(t, os.RemoveAll(shim.EntryPath(dir, "git")))
	require.NoError(t, os.WriteFile(shim.EntryPath(dir, "git"), []byte("broken"), 0644))

	path, err := g.Generate("git")
	require.NoError(t, err)
	_, err = os.Lstat(path)
	assert.NoError(t, err)
}

func TestGenerateAllRejectsCaseOnlyDuplicates(t *testing.T) {
	launcher := writableLauncher(t)
	dir := t.TempDir()
	g := shim.New(launcher, dir)

	err := g.GenerateAll([]string{"Git", "git"})
	assert.Error(t, err)
}

func TestGenerateRejectsEmptyCommand(t *testing.T) {
	launcher := writableLauncher(t)
	dir := t.TempDir()
	g := shim.New(launcher, dir)

	_, err := g.Generate("")
	assert.Error(t, err)
}

func TestGenerateRejectsMissingLauncher(t *testing.T) {
	dir := t.TempDir()
	g := shim.New(filepath.Join(dir, "does-not-exist"), dir)

	_, err := g.Generate("git")
	assert.Error(t, err)
}
