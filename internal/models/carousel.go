package models

// Carousel is a set of ordered slides plus the opaque template markup the
// renderer composes them into.
type Carousel struct {
	ID      string
	OwnerID string
	Title   string
	// TemplateHTML is validated elsewhere and treated as opaque here.
	TemplateHTML string
}

// Slide is one page of a carousel.
type Slide struct {
	CarouselID string
	Index      int
	Heading    string
	Body       string
	// BackgroundJSON is the slide's raw background descriptor as stored.
	// Decoded at the boundary by the background resolver.
	BackgroundJSON []byte
}
