// cmd/medchain/output.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
)

// printJSON пишет значение в stdout с отступами
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// respond печатает Response и возвращает исходную ошибку, чтобы код выхода был ненулевым
func respond(data interface{}, err error) error {
	if printErr := printJSON(medweb3.NewResponse(data, err)); printErr != nil {
		return printErr
	}
	return err
}

func printText(s string) {
	fmt.Fprintln(os.Stdout, s)
}
