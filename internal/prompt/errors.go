// Package prompt renders the system prompt and the auxiliary requests the
// assistant sends to the model.
package prompt

import "errors"

// ErrTemplateRender indicates that template rendering failed.
var ErrTemplateRender = errors.New("prompt: template render failed")
