package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/filex"
	"github.com/dmitrijs2005/heirvault/internal/models"
)

// downloadDir receives extracted files when no path is given.
const downloadDir = "download"

var errTitleRequired = errors.New("title is required")

// categoryPrefix marks a command argument as a category name.
const categoryPrefix = "@"

// splitCategory pulls the first @category token out of args.
func splitCategory(args []string) (*string, []string) {
	rest := make([]string, 0, len(args))
	var category *string
	for _, arg := range args {
		if name, ok := strings.CutPrefix(arg, categoryPrefix); ok && name != "" && category == nil {
			category = &name
			continue
		}
		rest = append(rest, arg)
	}
	return category, rest
}

// Add prompts for a new secret and stores it in the active compartment.
// args is the kind and an optional @category.
func (a *App) Add(ctx context.Context, args []string) error {
	category, args := splitCategory(args)
	if len(args) == 0 {
		return fmt.Errorf("%w: kind is required", models.ErrUnknownEntryType)
	}
	t, err := models.ParseEntryType(args[0])
	if err != nil {
		return err
	}

	title, err := a.readTitle("")
	if err != nil {
		return err
	}

	if t == models.EntryTypeFile {
		return a.addFile(ctx, title, category)
	}

	payload, err := a.readDetails(t)
	if err != nil {
		return err
	}
	md, err := a.readMetadata()
	if err != nil {
		return err
	}
	env, err := models.Wrap(title, md, payload)
	if err != nil {
		return err
	}
	id, err := a.vault.Add(ctx, env, category)
	if err != nil {
		return err
	}
	a.printf("Saved %s %s\n", t, id)
	return nil
}

func (a *App) addFile(ctx context.Context, title string, category *string) error {
	path, err := getSimpleText(a.reader, "Enter file path", a.out)
	if err != nil {
		return err
	}
	md, err := a.readMetadata()
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	id, err := a.vault.AddFile(ctx, title, md, category, filepath.Base(path), f)
	if err != nil {
		return err
	}
	a.printf("Saved file %s\n", id)
	return nil
}

// readTitle asks for a title. With a non-empty current value an empty
// answer keeps it.
func (a *App) readTitle(current string) (string, error) {
	prompt := "Enter title"
	if current != "" {
		prompt = fmt.Sprintf("Enter title [%s]", current)
	}
	title, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if title == "" {
		title = current
	}
	if title == "" {
		return "", errTitleRequired
	}
	return title, nil
}

func (a *App) readMetadata() ([]models.Metadata, error) {
	lines, err := GetMetadata(a.reader, a.out)
	if err != nil {
		return nil, err
	}
	return models.MetadataFromString(lines)
}

// readDetails prompts for the payload of t. Files are handled by addFile.
func (a *App) readDetails(t models.EntryType) (models.TypedEntry, error) {
	switch t {
	case models.EntryTypeNote:
		text, err := GetMultiline(a.reader, "Enter note text", a.out)
		if err != nil {
			return nil, err
		}
		return models.Note{Text: text}, nil

	case models.EntryTypeLogin:
		username, err := getSimpleText(a.reader, "Enter username", a.out)
		if err != nil {
			return nil, err
		}
		password, err := getSimpleText(a.reader, "Enter password", a.out)
		if err != nil {
			return nil, err
		}
		url, err := getSimpleText(a.reader, "Enter URL", a.out)
		if err != nil {
			return nil, err
		}
		return models.Login{Username: username, Password: password, URL: url}, nil

	case models.EntryTypeWallet:
		network, err := getSimpleText(a.reader, "Enter network (e.g. bitcoin)", a.out)
		if err != nil {
			return nil, err
		}
		phrase, err := getSimpleText(a.reader, "Enter wallet recovery phrase", a.out)
		if err != nil {
			return nil, err
		}
		passphrase, err := getSimpleText(a.reader, "Enter passphrase (optional)", a.out)
		if err != nil {
			return nil, err
		}
		address, err := getSimpleText(a.reader, "Enter address (optional)", a.out)
		if err != nil {
			return nil, err
		}
		return models.Wallet{Network: network, Phrase: phrase, Passphrase: passphrase, Address: address}, nil

	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntryType, t)
	}
}

// List prints the secrets of the active compartment. The optional first
// argument is a kind and an @category narrows the listing; anything else
// filters by title.
func (a *App) List(ctx context.Context, args []string) error {
	var f models.SecretFilter
	category, args := splitCategory(args)
	if category != nil {
		f.CategoryID = *category
	}
	if len(args) > 0 {
		if t, err := models.ParseEntryType(args[0]); err == nil {
			f.Kind = t
			args = args[1:]
		}
	}
	f.TitleSubstr = strings.Join(args, " ")

	items, err := a.vault.List(ctx, f)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("No secrets.\n")
		return nil
	}
	for _, it := range items {
		line := fmt.Sprintf("%s  %-6s  %s  %s", it.ID, it.Kind, it.ModifiedAt.Format(time.DateTime), it.Title)
		if it.CategoryID != nil {
			line += "  " + categoryPrefix + *it.CategoryID
		}
		a.printf("%s\n", line)
	}
	return nil
}

func (a *App) idArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// Show prints a secret in full.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter record id to show")
	if err != nil {
		return err
	}
	env, err := a.vault.Get(ctx, id)
	if err != nil {
		return err
	}
	v, err := env.Unwrap()
	if err != nil {
		return err
	}

	a.printf("%s (%s)\n", env.Title, env.Type)
	switch item := v.(type) {
	case *models.Note:
		a.printf("%s\n", item.Text)
	case *models.Login:
		a.printf("Username: %s\nPassword: %s\nURL: %s\n", item.Username, item.Password, item.URL)
	case *models.Wallet:
		a.printf("Network: %s\nPhrase: %s\n", item.Network, item.Phrase)
		if item.Passphrase != "" {
			a.printf("Passphrase: %s\n", item.Passphrase)
		}
		if item.Address != "" {
			a.printf("Address: %s\n", item.Address)
		}
	case *models.File:
		a.printf("File: %s (%d bytes), use 'extract %s' to save it\n", item.OriginalName, item.Size, id)
	}
	for _, md := range env.Metadata {
		a.printf("%s: %s\n", md.Name, md.Value)
	}
	return nil
}

// Edit changes the title and, on request, the contents of a secret.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter record id to edit")
	if err != nil {
		return err
	}
	env, err := a.vault.Get(ctx, id)
	if err != nil {
		return err
	}
	title, err := a.readTitle(env.Title)
	if err != nil {
		return err
	}
	env.Title = title

	if env.Type != models.EntryTypeFile {
		replace, err := GetYesNo(a.reader, "Replace contents?", false, a.out)
		if err != nil {
			return err
		}
		if replace {
			payload, err := a.readDetails(env.Type)
			if err != nil {
				return err
			}
			next, err := models.Wrap(title, env.Metadata, payload)
			if err != nil {
				return err
			}
			env.Details = next.Details
		}
	}

	replaceMD, err := GetYesNo(a.reader, "Replace metadata?", false, a.out)
	if err != nil {
		return err
	}
	if replaceMD {
		if env.Metadata, err = a.readMetadata(); err != nil {
			return err
		}
	}

	if err := a.vault.Update(ctx, id, *env); err != nil {
		return err
	}
	a.printf("Updated %s\n", id)
	return nil
}

// Delete removes a secret and its file blob.
func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter record id to delete")
	if err != nil {
		return err
	}
	if err := a.vault.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted %s\n", id)
	return nil
}

// Extract decrypts a stored file to args[1], or into ./download under its
// original name.
func (a *App) Extract(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter record id to extract")
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	f, err := a.vault.ExtractFile(ctx, id, &buf)
	if err != nil {
		return err
	}
	data := buf.Bytes()
	defer common.WipeByteArray(data)

	var dest string
	if len(args) > 1 {
		dest = args[1]
	} else {
		dir, err := filex.EnsureDir(downloadDir)
		if err != nil {
			return err
		}
		dest = filepath.Join(dir, filepath.Base(f.OriginalName))
	}
	if err := filex.WriteFileAtomic(dest, data, 0o600); err != nil {
		return err
	}
	a.printf("File saved to: %s\n", dest)
	return nil
}

// Stats prints how many secrets of each kind the active compartment holds.
func (a *App) Stats(ctx context.Context) error {
	counts, err := a.vault.Stats(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, c := range counts {
		a.printf("%-6s %d\n", c.Kind, c.Count)
		total += c.Count
	}
	a.printf("total  %d\n", total)
	return nil
}
