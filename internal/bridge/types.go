package bridge

// Sheet describes one sheet of the open model.
type Sheet struct {
	ID            string `json:"id"`
	SheetNumber   string `json:"sheet_number"`
	SheetName     string `json:"sheet_name"`
	IsPlaceholder bool   `json:"is_placeholder"`
}

// PrintSet is a named, user-defined subset of sheets selected for batch
// printing. SheetIDs reference Sheet.ID values.
type PrintSet struct {
	Name     string   `json:"name"`
	SheetIDs []string `json:"sheet_ids"`
}

// OpenModelRequest controls how the bridge opens the target model.
type OpenModelRequest struct {
	ModelPath string `json:"model_path"`
	// DetachFromCentral detaches workshared models to avoid central locks.
	DetachFromCentral bool `json:"detach_from_central"`
	// CloseAllWorksets opens with all worksets closed for a minimal load.
	// Export runs need worksets open so sheets render fully.
	CloseAllWorksets bool `json:"close_all_worksets"`
}

// OpenModelResponse identifies the opened document for subsequent calls.
type OpenModelResponse struct {
	DocumentID   string `json:"document_id"`
	IsWorkshared bool   `json:"is_workshared"`
}

// ExportRequest asks the bridge to export a single sheet to one format. The
// bridge writes the file to OutputPath on the shared filesystem; validation of
// the produced file is the worker's job.
type ExportRequest struct {
	SheetID    string `json:"sheet_id"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`

	// image options
	ImageDPI        int `json:"image_dpi,omitempty"`
	ImagePixelWidth int `json:"image_pixel_width,omitempty"`

	// dwg options
	DWGVersion    string `json:"dwg_version,omitempty"`
	LayerStandard string `json:"layer_standard,omitempty"`
}

// Warning is one review warning reported by the host.
type Warning struct {
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	ElementIDs  []string `json:"element_ids,omitempty"`
}

// View describes one view of the open model.
type View struct {
	Name       string `json:"name"`
	ViewType   string `json:"view_type"`
	OnSheet    bool   `json:"on_sheet"`
	IsTemplate bool   `json:"is_template"`
}

// LinkedFile is an external reference of the open model (CAD link, image,
// keynote file). Path points at the shared filesystem.
type LinkedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}
