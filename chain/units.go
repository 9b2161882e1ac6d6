package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// WeiToEther converts a base unit amount to a human readable float.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return ether
}
