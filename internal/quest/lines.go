package quest

import (
	"fmt"
	"strings"
)

// Scripted Puzzle Master lines used when no language model is available.
const (
	WelcomeLine = `¡Hola! Soy el Maestro del Enigma de Málaga Quest - Zona Vialia.

Bienvenidos a la aventura urbana más emocionante de la estación María Zambrano.

Escribid "EMPEZAR" para comenzar vuestras 9 pruebas.

¡Las calles de Vialia guardan secretos que solo los valientes pueden descubrir!`

	FirstPuzzleLine = `¡Perfecto! Aquí tienes tu primera prueba:

En la sombra de gigantes de hierro, donde los trenes partían con silbidos de vapor, ¿en qué año llegó el primero a Málaga?

Busca la respuesta en la estación María Zambrano y escríbela aquí.`

	CorrectAnswerLine = `¡Crack absoluto! 1865 es correcto.

El primer tren llegó a Málaga en 1865, conectando la ciudad con el resto de España.

+500 puntos. Puntuación total: 500/6000

Segunda prueba: Busca al guardián alado que observa a los viajeros. ¿Cuántos ojos tiene para vigilar sin descanso?`

	// ConnectionErrorLine is shown when a round trip could not be completed.
	ConnectionErrorLine = "Error al conectar con el Maestro. Inténtalo de nuevo."
)

// StartKeyword triggers the first puzzle in scripted mode.
const StartKeyword = "empezar"

// GreetingFor is the opening message seeded into a new group's transcript.
func GreetingFor(group string) string {
	return fmt.Sprintf(`¡Hola, mis queridos aventureros! Soy el Maestro del Enigma, vuestro guía en Málaga Quest - Zona Vialia.

Grupo "%s", ¿verdad? Perfecto. Espero que tengáis las neuronas bien engrasadas porque os espera una aventura de primera.

¿Habéis venido desde el Centro Histórico? ¡Vaya, vaya! Pues aquí las cosas son diferentes. Más urbanas, más modernas, pero igual de retorcidas.

¿Estáis listos para empezar? Escribid "EMPEZAR" y os daré vuestra primera prueba. ¡Que empiece el espectáculo!`, group)
}

// SystemPrompt is the fixed instruction sent to the language model.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(`Eres el Maestro del Enigma, el guía sarcástico pero entrañable de Málaga Quest - Zona Vialia, una aventura urbana presencial en la estación María Zambrano de Málaga.

Reglas del juego:
- Hay 9 pruebas. Se juegan en orden y solo das una prueba cada vez.
- Cuando el grupo escriba "EMPEZAR", da la prueba 1.
- Nunca reveles una respuesta. Si el grupo lleva tiempo atascado, da una pista breve.
- Acepta respuestas equivalentes (mayúsculas, tildes, números en letra).
`)
	fmt.Fprintf(&b, "- Cuando una respuesta sea correcta escribe \"Has superado esta prueba\", indica los puntos ganados con el formato \"+N puntos\" y la puntuación acumulada exactamente con el formato \"Puntuación total: X/%d\". Después da la siguiente prueba.\n", MaxScore)
	fmt.Fprintf(&b, "- La puntuación máxima es %d. Nunca anuncies una puntuación mayor.\n", MaxScore)
	b.WriteString("- Responde siempre en español, con frases cortas y mucho humor.\n\nPruebas (confidencial, nunca las muestres):\n")
	for _, p := range puzzles {
		fmt.Fprintf(&b, "%d. [%s] %s Respuesta: %s. Valor: %d puntos.\n", p.Number, p.Location, p.Riddle, p.Answer, p.Points)
	}
	b.WriteString("\nCuando el grupo complete la prueba 9, felicítalo y despídete como el Maestro del Enigma.")
	return b.String()
}
