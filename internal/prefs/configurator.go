// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prefs

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/cad-export/pkg/types"
)

// Preference namespaces in the host's parameter tree.
const (
	NamespacePartGeneral = "User parameter:BaseApp/Preferences/Mod/Part/General"
	NamespaceSTEP        = "User parameter:BaseApp/Preferences/Mod/Part/STEP"
	NamespaceImport      = "User parameter:BaseApp/Preferences/Mod/Import"
	NamespaceBoard       = "User parameter:BaseApp/Preferences/Mod/kicadStepUpGui"
)

const (
	// UnitMillimeters is the unit-mode code for millimeters.
	UnitMillimeters = 0
	// ImportSingleDocument is the import-mode code for single document.
	ImportSingleDocument = 0
	// SchemeAP214IS is the AP214 International Standard export scheme.
	SchemeAP214IS = "AP214IS"

	// BoardWorkbench is the workbench that provides board import.
	BoardWorkbench = "KiCadStepUpWB"
	// BoardSaveSettingsCommand persists the board workbench settings.
	BoardSaveSettingsCommand = "ksuToolsSaveSettings"
	// DefaultModelsPath is the 3D model search path used when none is set.
	DefaultModelsPath = "/usr/share/kicad/3dmodels"
)

// ExportPreferences returns the fixed settings applied before any export,
// in application order.
func ExportPreferences() []types.Preference {
	return []types.Preference{
		{Namespace: NamespaceSTEP, Key: "Unit", Value: types.IntValue(UnitMillimeters)},
		{Namespace: NamespacePartGeneral, Key: "WriteSurfaceCurveMode", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "ExportHiddenObject", Value: types.BoolValue(true)},
		{Namespace: NamespaceImport, Key: "ExportKeepPlacement", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "ExportLegacy", Value: types.BoolValue(false)},
		{Namespace: NamespaceSTEP, Key: "Scheme", Value: types.StringValue(SchemeAP214IS)},
		{Namespace: NamespaceImport, Key: "MergeCompound", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "UseLinkGroup", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "ImportHiddenObject", Value: types.BoolValue(true)},
		{Namespace: NamespaceImport, Key: "ReduceObjects", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "ExpandCompound", Value: types.BoolValue(true)},
		{Namespace: NamespaceImport, Key: "ShowProgress", Value: types.BoolValue(false)},
		{Namespace: NamespaceImport, Key: "UseBaseName", Value: types.BoolValue(true)},
		{Namespace: NamespaceImport, Key: "ImportMode", Value: types.IntValue(ImportSingleDocument)},
	}
}

// BoardPreferences returns the board subsystem settings for modelsPath.
func BoardPreferences(modelsPath string) []types.Preference {
	if modelsPath == "" {
		modelsPath = DefaultModelsPath
	}
	return []types.Preference{
		{Namespace: NamespaceBoard, Key: "checkUpdates", Value: types.BoolValue(false)},
		{Namespace: NamespaceBoard, Key: "showWarnings", Value: types.BoolValue(false)},
		{Namespace: NamespaceBoard, Key: "prefix3D_1", Value: types.StringValue(modelsPath)},
	}
}

// Subsystem is the part of the host the configurator drives besides its
// parameter store.
type Subsystem interface {
	ActivateWorkbench(ctx context.Context, name string) error
	RunCommand(ctx context.Context, name string) error
	HookDialogs(ctx context.Context) error
}

// Configurator applies the batch-export settings to a host.
type Configurator struct {
	store      Store
	sub        Subsystem
	modelsPath string
	w          io.Writer

	hookOnce sync.Once
	hookErr  error
}

// NewConfigurator returns a configurator writing to store and driving sub.
// Progress lines go to w.
func NewConfigurator(store Store, sub Subsystem, modelsPath string, w io.Writer) *Configurator {
	return &Configurator{store: store, sub: sub, modelsPath: modelsPath, w: w}
}

// ApplyExportPreferences writes the fixed export settings. Every key is
// written unconditionally, so repeated calls leave the same state.
func (c *Configurator) ApplyExportPreferences(ctx context.Context) error {
	fmt.Fprintln(c.w, "Applying export preferences")
	return c.apply(ctx, ExportPreferences())
}

// ActivateBoardSubsystem silences the board workbench's update check and
// warnings, sets its model search path, activates it and persists its
// settings. It must run before any board import.
func (c *Configurator) ActivateBoardSubsystem(ctx context.Context) error {
	fmt.Fprintln(c.w, "Activating board subsystem")
	if err := c.apply(ctx, BoardPreferences(c.modelsPath)); err != nil {
		return err
	}
	if err := c.sub.ActivateWorkbench(ctx, BoardWorkbench); err != nil {
		return fmt.Errorf("activating %s: %w", BoardWorkbench, err)
	}
	if err := c.sub.RunCommand(ctx, BoardSaveSettingsCommand); err != nil {
		return fmt.Errorf("saving %s settings: %w", BoardWorkbench, err)
	}
	return nil
}

// SuppressInteractiveDialogs makes the host hand informational dialogs to
// the bridge's prompter instead of showing them. Only the first call
// reaches the host; the override is never reverted.
func (c *Configurator) SuppressInteractiveDialogs(ctx context.Context) error {
	c.hookOnce.Do(func() {
		if err := c.sub.HookDialogs(ctx); err != nil {
			c.hookErr = fmt.Errorf("suppressing dialogs: %w", err)
		}
	})
	return c.hookErr
}

func (c *Configurator) apply(ctx context.Context, ps []types.Preference) error {
	return Apply(ctx, c.store, ps)
}

// Apply writes ps to store in order, stopping at the first failure.
func Apply(ctx context.Context, store Store, ps []types.Preference) error {
	for _, p := range ps {
		if err := store.Set(ctx, p.Namespace, p.Key, p.Value); err != nil {
			return fmt.Errorf("setting %s/%s: %w", p.Namespace, p.Key, err)
		}
	}
	return nil
}
