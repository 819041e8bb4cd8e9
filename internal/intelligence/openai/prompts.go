package openai

import (
	"fmt"
	"strings"
)

const classifySystemPrompt = "You are a document classification expert for immigration casework."

const analyzeSystemPrompt = "You are a professional visa document verifier. " +
	"Extract as much specific data as possible and provide detailed confidence assessments."

const ocrSystemPrompt = "You are a specialized OCR engine for immigration documents. " +
	"Provide both transcription and quality assessment."

// classifyTextLimit caps how much extracted text is sent for classification.
const classifyTextLimit = 2000

func buildClassifyPrompt(text string) string {
	if len(text) > classifyTextLimit {
		text = text[:classifyTextLimit]
	}
	var b strings.Builder
	b.WriteString("Analyze the following text from a document and identify what type of document it is ")
	b.WriteString("and if it references a specific visa category.\n\nText:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn the result in JSON format:\n")
	b.WriteString(`{
  "document_type": string,
  "visa_category": string or null,
  "confidence": float (0..1),
  "summary": string
}`)
	return b.String()
}

func buildAnalyzePrompt(text, visaCategory, documentType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert visa compliance officer. Analyze the following text extracted from a %s for a %s visa application.\n\n", documentType, visaCategory)
	b.WriteString("Document Text:\n")
	b.WriteString(text)
	b.WriteString("\n\nTask:\n")
	b.WriteString(`1. Verify if the document matches the expected type.
2. Extract key data points:
   - Full names of all parties mentioned
   - Important dates (date of birth, issue date, expiry date, marriage date, notary/translation/authentication date, etc.)
   - Specifically check for any "Valid Until", "Expiry", or "Validity" dates on notary stamps or translation certificates.
   - Reference numbers (passport number, ID number, form numbers)
   - Presence of seals, stamps, or signatures
3. Check for completeness based on standard visa requirements for this document type.
4. Identify any missing elements or non-compliant information.
5. Provide a completeness score (0-100).
6. Provide confidence scores (0-100) per extracted field and an overall confidence score.

Return the result in JSON format:
{
  "is_correct_type": bool,
  "extracted_data": {
    "names": [list],
    "dates": {
      "date_of_birth": "YYYY-MM-DD",
      "issue_date": "YYYY-MM-DD",
      "expiry_date": "YYYY-MM-DD",
      "translation_date": "YYYY-MM-DD",
      "authentication_date": "YYYY-MM-DD",
      "other_dates": { "type": "value" }
    },
    "reference_numbers": [list],
    "has_signature": bool,
    "has_official_seal": bool
  },
  "field_confidence": {
    "names": int (0-100),
    "dates": int (0-100),
    "reference_numbers": int (0-100),
    "signature_seal": int (0-100),
    "overall_text_quality": int (0-100)
  },
  "confidence_score": int (0-100),
  "completeness_score": int (0-100),
  "findings": [list of strings],
  "missing_elements": [list of strings],
  "compliance_status": "Passed" | "Partial" | "Failed",
  "summary": string
}`)
	return b.String()
}

const ocrPrompt = `Please perform high-accuracy OCR on these document pages.

Transcribe all text exactly as it appears, including names, dates, and form headers.

After transcription, provide a confidence assessment in JSON format:
{
  "transcribed_text": "full text here",
  "ocr_confidence": int (0-100),
  "quality_issues": [list any issues like blur, poor scan quality, handwriting, etc.],
  "text_clarity": "excellent" | "good" | "fair" | "poor"
}`
