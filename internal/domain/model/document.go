package model

// DocumentSection is one heading/body block of a composed research document.
type DocumentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// ComposedDocument is the output of the document composer, ready for the
// document collaborator.
type ComposedDocument struct {
	Title    string            `json:"title"`
	Sections []DocumentSection `json:"sections"`
}
