package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
)

// Compartments dispatches the compartment subcommands. Without a
// subcommand it lists.
func (a *App) Compartments(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		return a.listCompartments(ctx)
	case "create":
		return a.createCompartment(ctx)
	case "use":
		if len(args) < 2 {
			printlnFn("Usage: compartments use <name>")
			return nil
		}
		return a.useCompartment(ctx, args[1])
	case "adopt":
		return a.adoptCompartment(ctx)
	default:
		printlnFn("Usage: compartments [list|create|use <name>|adopt]")
		return nil
	}
}

func (a *App) listCompartments(ctx context.Context) error {
	items, err := a.comps.List(ctx)
	if err != nil {
		return err
	}
	active, key, _ := a.session().ActiveCompartment()
	common.WipeByteArray(key)
	for _, c := range items {
		marker := " "
		if c.Name == active {
			marker = "*"
		}
		a.printf("%s %-20s %s  %s\n", marker, c.Name, c.CreatedAt.Format(time.DateOnly), c.Description)
	}
	return nil
}

func (a *App) createCompartment(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter compartment name", a.out)
	if err != nil {
		return err
	}
	desc, err := getSimpleText(a.reader, "Enter description", a.out)
	if err != nil {
		return err
	}
	c, phrase, err := a.comps.Create(ctx, name, desc)
	if err != nil {
		return err
	}
	a.printf("Compartment %q created.\n", c.Name)
	a.printf("\nAccess phrase for this compartment (give it to whoever should open it):\n\n  %s\n\n", phrase)
	return nil
}

func (a *App) useCompartment(ctx context.Context, name string) error {
	if err := a.comps.SwitchActive(ctx, name); err != nil {
		return err
	}
	a.printf("Active compartment: %s\n", name)
	return nil
}

func (a *App) adoptCompartment(ctx context.Context) error {
	phrase, err := getSimpleText(a.reader, "Enter compartment phrase", a.out)
	if err != nil {
		return err
	}
	name, err := a.comps.Adopt(ctx, phrase)
	if err != nil {
		return err
	}
	a.printf("Compartment %q is reachable with your password again.\n", name)
	return nil
}
