package pg

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// RunMigrations aplica los *_up.sql del directorio en orden lexicográfico.
func (s *Store) RunMigrations(ctx context.Context, dir string) error {
	files, err := listMigrations(dir, "_up.sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	return nil
}

// RunMigrationsDown aplica los *_down.sql en orden inverso.
func (s *Store) RunMigrationsDown(ctx context.Context, dir string) error {
	files, err := listMigrations(dir, "_down.sql")
	if err != nil {
		return err
	}
	for i := len(files) - 1; i >= 0; i-- {
		b, err := os.ReadFile(files[i])
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", files[i], err)
		}
	}
	return nil
}

func listMigrations(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
