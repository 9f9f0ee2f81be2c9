// Package quest holds the fixed game content for Málaga Quest - Zona Vialia:
// the nine puzzles, the scoring scale and the Puzzle Master's scripted lines.
package quest

const (
	// MaxScore is the total score available across all puzzles.
	MaxScore = 6000
	// PuzzleCount is the number of puzzles and the cap for the completion counter.
	PuzzleCount = 9
)

// Puzzle is one riddle tied to a physical spot around the station.
type Puzzle struct {
	Number   int
	Location string
	Riddle   string
	Answer   string
	Points   int
}

var puzzles = []Puzzle{
	{
		Number:   1,
		Location: "Estación María Zambrano",
		Riddle:   "En la sombra de gigantes de hierro, donde los trenes partían con silbidos de vapor, ¿en qué año llegó el primero a Málaga?",
		Answer:   "1865",
		Points:   500,
	},
	{
		Number:   2,
		Location: "Atrio Central",
		Riddle:   "Busca al guardián alado que observa a los viajeros. ¿Cuántos ojos tiene para vigilar sin descanso?",
		Answer:   "2",
		Points:   500,
	},
	{
		Number:   3,
		Location: "Zona Comercial",
		Riddle:   "Entre escaparates y prisas, una escalera no sube ni baja sola. ¿Cuántos peldaños cuenta la que lleva a la planta superior?",
		Answer:   "24",
		Points:   600,
	},
	{
		Number:   4,
		Location: "Vestíbulo Principal",
		Riddle:   "El tiempo aquí se mide en andenes. ¿Qué color tienen las agujas del gran reloj del vestíbulo?",
		Answer:   "negro",
		Points:   600,
	},
	{
		Number:   5,
		Location: "Área de Restauración",
		Riddle:   "Donde el hambre del viajero encuentra consuelo, una palabra andaluza da nombre al pescado frito. ¿Cuál es?",
		Answer:   "pescaíto",
		Points:   700,
	},
	{
		Number:   6,
		Location: "Fachada Principal",
		Riddle:   "La piel de la estación es de cristal y acero. ¿Qué forma geométrica se repite en su cubierta?",
		Answer:   "triángulo",
		Points:   700,
	},
	{
		Number:   7,
		Location: "Plaza de Vialia",
		Riddle:   "En la plaza, el agua no cae del cielo. ¿Cuántos chorros lanza la fuente al aire?",
		Answer:   "7",
		Points:   700,
	},
	{
		Number:   8,
		Location: "Zona de Servicios",
		Riddle:   "Quien se pierde busca una letra blanca sobre fondo azul. ¿Qué letra marca el punto de información?",
		Answer:   "i",
		Points:   800,
	},
	{
		Number:   9,
		Location: "Accesos AVE",
		Riddle:   "El pájaro más veloz de la península no tiene plumas. ¿Qué animal da forma al morro del tren de alta velocidad?",
		Answer:   "pato",
		Points:   900,
	},
}

// Puzzles returns a copy of the puzzle catalogue in play order.
func Puzzles() []Puzzle {
	out := make([]Puzzle, len(puzzles))
	copy(out, puzzles)
	return out
}

// Locations returns the puzzle locations in play order.
func Locations() []string {
	out := make([]string, 0, len(puzzles))
	for _, p := range puzzles {
		out = append(out, p.Location)
	}
	return out
}
