package bible

import "strings"

const (
	OldTestament = "OT"
	NewTestament = "NT"
)

type Book struct {
	ID        string `json:"id"` // USFM code, e.g. "JHN"
	Name      string `json:"name"`
	Testament string `json:"testament"`
	Chapters  int    `json:"chapters"`
	Order     int    `json:"order"`
}

var (
	canon = []Book{
		{ID: "GEN", Name: "Genesis", Testament: OldTestament, Chapters: 50},
		{ID: "EXO", Name: "Exodus", Testament: OldTestament, Chapters: 40},
		{ID: "LEV", Name: "Leviticus", Testament: OldTestament, Chapters: 27},
		{ID: "NUM", Name: "Numbers", Testament: OldTestament, Chapters: 36},
		{ID: "DEU", Name: "Deuteronomy", Testament: OldTestament, Chapters: 34},
		{ID: "JOS", Name: "Joshua", Testament: OldTestament, Chapters: 24},
		{ID: "JDG", Name: "Judges", Testament: OldTestament, Chapters: 21},
		{ID: "RUT", Name: "Ruth", Testament: OldTestament, Chapters: 4},
		{ID: "1SA", Name: "1 Samuel", Testament: OldTestament, Chapters: 31},
		{ID: "2SA", Name: "2 Samuel", Testament: OldTestament, Chapters: 24},
		{ID: "1KI", Name: "1 Kings", Testament: OldTestament, Chapters: 22},
		{ID: "2KI", Name: "2 Kings", Testament: OldTestament, Chapters: 25},
		{ID: "1CH", Name: "1 Chronicles", Testament: OldTestament, Chapters: 29},
		{ID: "2CH", Name: "2 Chronicles", Testament: OldTestament, Chapters: 36},
		{ID: "EZR", Name: "Ezra", Testament: OldTestament, Chapters: 10},
		{ID: "NEH", Name: "Nehemiah", Testament: OldTestament, Chapters: 13},
		{ID: "EST", Name: "Esther", Testament: OldTestament, Chapters: 10},
		{ID: "JOB", Name: "Job", Testament: OldTestament, Chapters: 42},
		{ID: "PSA", Name: "Psalms", Testament: OldTestament, Chapters: 150},
		{ID: "PRO", Name: "Proverbs", Testament: OldTestament, Chapters: 31},
		{ID: "ECC", Name: "Ecclesiastes", Testament: OldTestament, Chapters: 12},
		{ID: "SNG", Name: "Song of Solomon", Testament: OldTestament, Chapters: 8},
		{ID: "ISA", Name: "Isaiah", Testament: OldTestament, Chapters: 66},
		{ID: "JER", Name: "Jeremiah", Testament: OldTestament, Chapters: 52},
		{ID: "LAM", Name: "Lamentations", Testament: OldTestament, Chapters: 5},
		{ID: "EZK", Name: "Ezekiel", Testament: OldTestament, Chapters: 48},
		{ID: "DAN", Name: "Daniel", Testament: OldTestament, Chapters: 12},
		{ID: "HOS", Name: "Hosea", Testament: OldTestament, Chapters: 14},
		{ID: "JOL", Name: "Joel", Testament: OldTestament, Chapters: 3},
		{ID: "AMO", Name: "Amos", Testament: OldTestament, Chapters: 9},
		{ID: "OBA", Name: "Obadiah", Testament: OldTestament, Chapters: 1},
		{ID: "JON", Name: "Jonah", Testament: OldTestament, Chapters: 4},
		{ID: "MIC", Name: "Micah", Testament: OldTestament, Chapters: 7},
		{ID: "NAM", Name: "Nahum", Testament: OldTestament, Chapters: 3},
		{ID: "HAB", Name: "Habakkuk", Testament: OldTestament, Chapters: 3},
		{ID: "ZEP", Name: "Zephaniah", Testament: OldTestament, Chapters: 3},
		{ID: "HAG", Name: "Haggai", Testament: OldTestament, Chapters: 2},
		{ID: "ZEC", Name: "Zechariah", Testament: OldTestament, Chapters: 14},
		{ID: "MAL", Name: "Malachi", Testament: OldTestament, Chapters: 4},
		{ID: "MAT", Name: "Matthew", Testament: NewTestament, Chapters: 28},
		{ID: "MRK", Name: "Mark", Testament: NewTestament, Chapters: 16},
		{ID: "LUK", Name: "Luke", Testament: NewTestament, Chapters: 24},
		{ID: "JHN", Name: "John", Testament: NewTestament, Chapters: 21},
		{ID: "ACT", Name: "Acts", Testament: NewTestament, Chapters: 28},
		{ID: "ROM", Name: "Romans", Testament: NewTestament, Chapters: 16},
		{ID: "1CO", Name: "1 Corinthians", Testament: NewTestament, Chapters: 16},
		{ID: "2CO", Name: "2 Corinthians", Testament: NewTestament, Chapters: 13},
		{ID: "GAL", Name: "Galatians", Testament: NewTestament, Chapters: 6},
		{ID: "EPH", Name: "Ephesians", Testament: NewTestament, Chapters: 6},
		{ID: "PHP", Name: "Philippians", Testament: NewTestament, Chapters: 4},
		{ID: "COL", Name: "Colossians", Testament: NewTestament, Chapters: 4},
		{ID: "1TH", Name: "1 Thessalonians", Testament: NewTestament, Chapters: 5},
		{ID: "2TH", Name: "2 Thessalonians", Testament: NewTestament, Chapters: 3},
		{ID: "1TI", Name: "1 Timothy", Testament: NewTestament, Chapters: 6},
		{ID: "2TI", Name: "2 Timothy", Testament: NewTestament, Chapters: 4},
		{ID: "TIT", Name: "Titus", Testament: NewTestament, Chapters: 3},
		{ID: "PHM", Name: "Philemon", Testament: NewTestament, Chapters: 1},
		{ID: "HEB", Name: "Hebrews", Testament: NewTestament, Chapters: 13},
		{ID: "JAS", Name: "James", Testament: NewTestament, Chapters: 5},
		{ID: "1PE", Name: "1 Peter", Testament: NewTestament, Chapters: 5},
		{ID: "2PE", Name: "2 Peter", Testament: NewTestament, Chapters: 3},
		{ID: "1JN", Name: "1 John", Testament: NewTestament, Chapters: 5},
		{ID: "2JN", Name: "2 John", Testament: NewTestament, Chapters: 1},
		{ID: "3JN", Name: "3 John", Testament: NewTestament, Chapters: 1},
		{ID: "JUD", Name: "Jude", Testament: NewTestament, Chapters: 1},
		{ID: "REV", Name: "Revelation", Testament: NewTestament, Chapters: 22},
	}
	booksByID = indexBooks()
)

func indexBooks() map[string]Book {
	idx := make(map[string]Book, len(canon))
	for i := range canon {
		canon[i].Order = i + 1
		idx[canon[i].ID] = canon[i]
	}
	return idx
}

// Books returns the 66 books of the Protestant canon in order.
func Books() []Book {
	books := make([]Book, len(canon))
	copy(books, canon)
	return books
}

// LookupBook finds a book by its USFM code (case-insensitive).
func LookupBook(id string) (Book, bool) {
	b, ok := booksByID[strings.ToUpper(strings.TrimSpace(id))]
	return b, ok
}
