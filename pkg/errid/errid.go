package errid

import (
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2s"
)

// Site identifies a failure site independently of incidental line churn
// elsewhere in the file.
type Site struct {
	// File is the base name of the source file, without directories.
	File string
	// Function is the bare function name, without package qualifier.
	Function string
	// Offset is the line offset of the site from the start of the function.
	Offset int
}

const (
	idLo = 1_000_000
	idHi = 9_999_999

	// The draw range is slightly narrower than the id range so that adding
	// the line offset keeps the high-order digits stable for functions of up
	// to a thousand lines.
	drawLo = 1_000_000
	drawHi = 9_998_999
)

var (
	mu     sync.Mutex
	bySite = make(map[Site]int)
	byID   = make(map[int]Site)
)

// ID returns the numeric identifier for the given site, assigning one on
// first use. The insert-if-absent operation is atomic; concurrent callers
// with the same site always observe the same id.
func ID(site Site) int {
	mu.Lock()
	defer mu.Unlock()

	if id, ok := bySite[site]; ok {
		return id
	}

	rng := rand.New(rand.NewSource(seed(site)))
	var id int
	for {
		id = draw(rng, site.Offset)
		if _, taken := byID[id]; !taken {
			break
		}
		// Collision with another site's id: re-seed from the colliding
		// draw and try again.
		rng = rand.New(rand.NewSource(int64(id)))
	}
	bySite[site] = id
	byID[id] = site
	return id
}

// Lookup returns the site registered for an id, if any.
func Lookup(id int) (Site, bool) {
	mu.Lock()
	defer mu.Unlock()
	site, ok := byID[id]
	return site, ok
}

// Len reports how many failure sites have been registered so far.
func Len() int {
	mu.Lock()
	defer mu.Unlock()
	return len(bySite)
}

func seed(site Site) int64 {
	sum := blake2s.Sum256([]byte(site.File + site.Function))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}

func draw(rng *rand.Rand, offset int) int {
	span := idHi - idLo + 1
	n := rng.Intn(drawHi-drawLo+1) + drawLo
	id := (n+offset-idLo)%span + idLo
	if id < idLo {
		id += span
	}
	return id
}

// Here captures the call site of the caller as a Site. skip selects how many
// additional stack frames to skip: 0 identifies the direct caller of Here,
// 1 its caller, and so on.
func Here(skip int) Site {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return Site{File: "unknown", Function: "unknown"}
	}
	frames := runtime.CallersFrames(pcs[:])
	frame, _ := frames.Next()

	offset := 0
	if frame.Func != nil {
		_, entry := frame.Func.FileLine(frame.Func.Entry())
		if frame.Line >= entry {
			offset = frame.Line - entry
		}
	}
	return Site{
		File:     filepath.Base(frame.File),
		Function: shortFuncName(frame.Function),
		Offset:   offset,
	}
}

// FuncSite identifies a function by its definition site with offset zero.
// fn must be a function value; anything else yields a zero-valued site.
func FuncSite(fn any) Site {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return Site{File: "unknown", Function: "unknown"}
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return Site{File: "unknown", Function: "unknown"}
	}
	file, _ := f.FileLine(f.Entry())
	return Site{
		File:     filepath.Base(file),
		Function: shortFuncName(f.Name()),
	}
}

// shortFuncName strips the package path and package name from a runtime
// function name, e.g. "github.com/x/y.(*T).Check" becomes "(*T).Check".
// Receiver and closure qualifiers stay so that distinct closures keep
// distinct identities.
func shortFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
