package ollama

import (
	"fmt"
	"strings"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// buildTranscriptionPrompt asks the vision model for a literal transcription.
// When prior corrections exist they are attached as exemplar images, each
// paired with its correct transcription, to bias the model toward the user's
// handwriting quirks.
func buildTranscriptionPrompt(exemplars []domain.Correction) string {
	if len(exemplars) == 0 {
		return "Transcribe este texto manuscrito literalmente. Solo devuelve el texto, sin comentarios adicionales."
	}

	var b strings.Builder
	b.WriteString("Estas son muestras de la letra de este usuario con su transcripción correcta:\n\n")
	for idx, ex := range exemplars {
		fmt.Fprintf(&b, "Imagen %d, transcripción correcta:\n%s\n\n", idx+1, ex.CorrectedText)
	}
	fmt.Fprintf(&b,
		"La última imagen (imagen %d) es nueva. Transcríbela literalmente con el mismo estilo que las muestras. Solo devuelve el texto, sin comentarios adicionales.",
		len(exemplars)+1,
	)
	return b.String()
}
