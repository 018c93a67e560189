package state

var (
	airdropSignerKey        = []byte("airdrop/signer")
	airdropOwnerKey         = []byte("airdrop/owner")
	airdropCheckpointPrefix = []byte("airdrop/checkpoint/")
	airdropPoolOwnerPrefix  = []byte("airdrop/pool-owner/")
	airdropClaimedPrefix    = []byte("airdrop/claimed/")
	airdropWhitelistPrefix  = []byte("airdrop/whitelist/")
	bankBalancePrefix       = []byte("bank/balance/")
)
