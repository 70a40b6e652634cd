// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package types

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// decimal is a uint64 which marshals as a decimal string in JSON, the way the
// beacon API encodes integers. Decoding goes through common.Decimal, plain
// JSON numbers are accepted as well.
type decimal uint64

func (d decimal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(d), 10)), nil
}

func (d *decimal) UnmarshalJSON(input []byte) error {
	if len(input) > 0 && input[0] != '"' {
		v, err := strconv.ParseUint(string(input), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid decimal %s: %w", input, err)
		}
		*d = decimal(v)
		return nil
	}
	var dec common.Decimal
	if err := dec.UnmarshalJSON(input); err != nil {
		return fmt.Errorf("invalid decimal %s: %w", input, err)
	}
	*d = decimal(dec)
	return nil
}
