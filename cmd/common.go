/*
Copyright © 2026 DesiroReboot <desiroreboot@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/transducer"
)

const defaultOllamaModel = "llama3.1:8b"

// buildService constructs the transduction backend every node of a run
// will invoke.
func buildService(name, ollamaModel, ollamaBaseURL, mymemoryEmail string) (transducer.Service, error) {
	switch name {
	case "google":
		return transducer.NewGoogleService(), nil
	case "ollama":
		if ollamaModel == "" {
			ollamaModel = defaultOllamaModel
		}
		return transducer.NewOllamaService(ollamaModel, ollamaBaseURL), nil
	case "mymemory":
		return transducer.NewMyMemoryService(mymemoryEmail), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
}
