// Package rag answers questions from document text: chunking, embedding,
// MMR retrieval and a grounded answer from the model.
package rag

import "errors"

var (
	// ErrDimensionMismatch indicates two vectors of different length.
	ErrDimensionMismatch = errors.New("rag: vector dimensions mismatch")

	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question 不能为空")

	// ErrNoChunks is returned when there is nothing to search.
	ErrNoChunks = errors.New("chunks 不能为空")

	// ErrInvalidAnswer is returned when the model reply is not a JSON document.
	ErrInvalidAnswer = errors.New("LLM 返回的内容不是合法 JSON")
)
