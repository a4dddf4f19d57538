package domain

// Extraction is the tagged outcome of pulling text out of a file.
// Text is set only for ExtractionOK; Err only for ExtractionFailed.
type Extraction struct {
	Kind    string
	Text    string
	UsedOCR bool
	Err     error
}

// ExtractedText builds an ok result
func ExtractedText(text string, usedOCR bool) Extraction {
	return Extraction{Kind: ExtractionOK, Text: text, UsedOCR: usedOCR}
}

// NoText builds a result for a file with no recoverable text
func NoText(usedOCR bool) Extraction {
	return Extraction{Kind: ExtractionNoText, UsedOCR: usedOCR}
}

// ExtractionError builds a failed result
func ExtractionError(err error, usedOCR bool) Extraction {
	return Extraction{Kind: ExtractionFailed, Err: err, UsedOCR: usedOCR}
}

// Detail returns a human readable cause for failed results
func (e Extraction) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
