package util

// Mod identifies a remote mod. The engine treats it as already validated.
type Mod struct {
	ModID int    `json:"mod_id"`
	Name  string `json:"name"`
}

// File is one downloadable file of a mod.
type File struct {
	FileID   int    `json:"file_id"`
	FileName string `json:"file_name"`
	Version  string `json:"version"`
}

// Patch replaces Dest (relative to the game directory) with the file at URL.
type Patch struct {
	Dest string `json:"dest"`
	URL  string `json:"url"`
}
